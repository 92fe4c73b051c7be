// Package ui renders terminal output for the CLI.
package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

var (
	successColor = lipgloss.Color("#00FF88")
	warningColor = lipgloss.Color("#FFB800")
	errorColor   = lipgloss.Color("#FF4444")
	infoColor    = lipgloss.Color("#00D9FF")

	successStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(infoColor)

	// Highlight accents inline fragments such as ordinals and paths.
	Highlight = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// PrintSuccess prints a success message.
func PrintSuccess(format string, args ...interface{}) {
	fmt.Println(successStyle.Render("✓ " + fmt.Sprintf(format, args...)))
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message.
func PrintWarning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("⚠ " + fmt.Sprintf(format, args...)))
}

// PrintInfo prints an info message.
func PrintInfo(format string, args ...interface{}) {
	fmt.Println(infoStyle.Render("ℹ " + fmt.Sprintf(format, args...)))
}

// PrintTable prints a table using pterm.
func PrintTable(headers []string, rows [][]string) {
	tableData := pterm.TableData{headers}
	tableData = append(tableData, rows...)
	pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
}
