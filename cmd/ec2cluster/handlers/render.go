package handlers

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"ec2cluster/internal/cluster"
	"ec2cluster/internal/config"
	"ec2cluster/internal/shell"
)

var (
	colorBlue  = lipgloss.Color("#3b82f6")
	colorGreen = lipgloss.Color("#22c55e")
	colorRed   = lipgloss.Color("#ef4444")
	colorDim   = lipgloss.Color("#6b7280")
	colorWhite = lipgloss.Color("#f9fafb")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	failStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

func isInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// renderIPs writes the cluster address set: a styled table on a
// terminal, plain YAML when piped.
func renderIPs(clusterName string, ips *cluster.IPSet) (string, error) {
	if !isInteractiveTTY() {
		data, err := yaml.Marshal(ips)
		if err != nil {
			return "", fmt.Errorf("failed to marshal addresses: %w", err)
		}
		return string(data), nil
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  " + clusterName))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("─", 52)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-8s %-18s %s", "node", "public ip", "private ip")))
	b.WriteString("\n")

	fmt.Fprintf(&b, "  %-8s %-18s %s\n", "master", ips.MasterPublicIP, ips.MasterPrivateIP)
	for i := range ips.WorkerPublicIPs {
		fmt.Fprintf(&b, "  %-8s %-18s %s\n",
			fmt.Sprintf("node%d", i+2), ips.WorkerPublicIPs[i], ips.WorkerPrivateIPs[i])
	}
	return b.String(), nil
}

// renderSchema writes the config field reference table.
func renderSchema() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  Cluster configuration fields"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("─", 70)))
	b.WriteString("\n")

	for _, f := range config.Schema {
		name := f.Name
		if f.Required {
			name += " *"
		}
		b.WriteString(sectionStyle.Render("  " + name))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  (%s", f.Type)))
		if f.Default != "" {
			b.WriteString(dimStyle.Render(", default " + f.Default))
		}
		b.WriteString(dimStyle.Render(")"))
		b.WriteString("\n")
		fmt.Fprintf(&b, "    %s\n", f.Description)
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  * required"))
	b.WriteString("\n")
	return b.String()
}

// renderResults writes per-node command outcomes in node order.
func renderResults(results []shell.Result) string {
	var b strings.Builder
	for _, res := range results {
		status := okStyle.Render("ok")
		if !res.Succeeded() {
			status = failStyle.Render(fmt.Sprintf("exit %d", res.ExitStatus))
		}
		b.WriteString(sectionStyle.Render(fmt.Sprintf("── node%d %s ", res.NodeIndex, res.Addr)))
		b.WriteString(status)
		b.WriteString("\n")
		if out := strings.TrimRight(res.Stdout, "\n"); out != "" {
			b.WriteString(out)
			b.WriteString("\n")
		}
		if errOut := strings.TrimRight(res.Stderr, "\n"); errOut != "" {
			b.WriteString(dimStyle.Render(errOut))
			b.WriteString("\n")
		}
	}
	return b.String()
}
