package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/levysystems/agentarmy"
	"github.com/levysystems/agentarmy/agent"
	"github.com/levysystems/agentarmy/capability"
	"github.com/levysystems/agentarmy/config"
	"github.com/levysystems/agentarmy/logging"
	"github.com/levysystems/agentarmy/workflow"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a local demonstration of the framework",
	Long: "Spins up an in-process army with two sample agents, runs a\n" +
		"delegation, a failing task, an assistance request and a workflow,\n" +
		"then prints the resulting dashboard.",
	RunE: runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewAdapter(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, os.Stderr)

	army, err := agentarmy.New(func(o *agentarmy.Options) {
		o.Config = cfg
		o.Logger = logger
	})
	if err != nil {
		return err
	}
	defer army.Close()

	if err := registerDemoAgents(army); err != nil {
		return err
	}

	ctx := cmd.Context()

	color.Cyan("== delegation ==")
	res, err := army.Execute(ctx, "add_one", map[string]any{"value": float64(41)})
	if err != nil {
		return err
	}
	fmt.Printf("add_one(41) -> %v (agent %s)\n", res.Value, res.AgentID)

	color.Cyan("== classified failure ==")
	res, err = army.Execute(ctx, "flaky", nil)
	if err != nil {
		return err
	}
	fmt.Printf("flaky -> success=%v error=%q\n", res.Success, res.Error)

	color.Cyan("== assistance ==")
	req, err := army.RequestAssistance(ctx, "worker", "flaky keeps failing", 0.8)
	if err != nil {
		return err
	}
	fmt.Printf("outcome=%s helper=%s result=%v\n", req.Outcome, req.HelperID, req.Result)

	color.Cyan("== workflow ==")
	wf, err := army.RunWorkflow(ctx, "demo-chain", []workflow.Step{
		{Capability: "add_one", Params: map[string]any{"value": float64(1)}},
		{Capability: "add_one", Build: func(prior []workflow.StepResult) map[string]any {
			return map[string]any{"value": prior[0].Task.Result}
		}},
	})
	if err != nil {
		return err
	}
	fmt.Printf("workflow success=%v final=%v\n", wf.Success, wf.Steps[len(wf.Steps)-1].Task.Result)

	color.Cyan("== dashboard ==")
	printDashboard(army.Dashboard(10))

	return nil
}

func registerDemoAgents(army *agentarmy.Army) error {
	if err := army.RegisterAgent(agent.Descriptor{ID: "worker", DisplayName: "Worker"}, []capability.Descriptor{
		{
			Name:        "add_one",
			Category:    "math",
			Description: "Increments a number",
			Params:      []capability.Param{{Name: "value", Type: "number", Required: true}},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return args["value"].(float64) + 1, nil
			},
		},
		{
			Name:        "flaky",
			Category:    "math",
			Description: "Always fails, for demonstration",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return nil, errors.New("simulated backend failure")
			},
		},
	}); err != nil {
		return err
	}

	return army.RegisterAgent(agent.Descriptor{ID: "mentor", DisplayName: "Mentor", AssistCapability: "give_advice"}, []capability.Descriptor{
		{
			Name:        "give_advice",
			Category:    "advisory",
			Description: "Offers canned remediation advice",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return "check the backend connection and retry with backoff", nil
			},
		},
		{
			Name:     "review_math",
			Category: "math",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return "looks fine", nil
			},
		},
	})
}

func printDashboard(d agentarmy.Dashboard) {
	bold := color.New(color.Bold)

	bold.Println("agents:")
	for _, a := range d.Agents {
		statusColor := color.GreenString
		switch a.Status {
		case agent.StatusError:
			statusColor = color.RedString
		case agent.StatusBusy:
			statusColor = color.YellowString
		}
		fmt.Printf("  %-10s %-8s completed=%d failed=%d rate=%.2f\n",
			a.ID, statusColor(string(a.Status)),
			a.Metrics.TasksCompleted, a.Metrics.TasksFailed, a.Metrics.SuccessRate())
	}

	bold.Println("capabilities:")
	for _, c := range d.Capabilities {
		fmt.Printf("  %-12s category=%-10s owner=%s\n", c.Name, c.Category, c.OwnerID)
	}

	bold.Println("experience:")
	fmt.Printf("  total=%d\n", d.Experience.Total)
	for eventType, count := range d.Experience.ByType {
		fmt.Printf("  %-20s %d\n", eventType, count)
	}
}
