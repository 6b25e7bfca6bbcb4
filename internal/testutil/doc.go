// Package testutil provides small fluent helpers shared by package tests.
package testutil
