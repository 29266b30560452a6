package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fieldmarshal/brigade/internal/config"
	"github.com/fieldmarshal/brigade/internal/decompose"
	"github.com/fieldmarshal/brigade/internal/events"
	"github.com/fieldmarshal/brigade/internal/llm"
	"github.com/fieldmarshal/brigade/internal/planner"
	"github.com/fieldmarshal/brigade/internal/protect"
	"github.com/fieldmarshal/brigade/pkg/models"
)

var (
	planFile         string
	planMessage      string
	planDescription  string
	planBase         string
	planMaxAgents    int
	planDecomposer   string
	planInferOverlap bool
	planJSON         bool
)

var planCmd = &cobra.Command{
	Use:   "plan [items...]",
	Short: "Decompose work items into a deployment plan",
	Long: `Decompose a body of work into agent assignments and persist the
resulting deployment plan.

Work items come from positional arguments, --message, --file, or stdin
(one item per line; leading list markers like "-", "*", or "1." are
stripped).
Each agent spec gets a role, the files it owns, a validation checklist,
and dependency edges on agents that must integrate first.

Decomposers:
  rules    keyword and path heuristics, fully offline (default)
  claude   the Anthropic API groups items and proposes dependencies

Examples:
  brigade plan "add login endpoint" "add logout endpoint"
  brigade plan -f items.txt --description "auth feature rollout"
  cat items.txt | brigade plan --decomposer claude`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planFile, "file", "f", "", "Read work items from a file")
	planCmd.Flags().StringVarP(&planMessage, "message", "m", "", "Work items as one inline string")
	planCmd.Flags().StringVar(&planDescription, "description", "", "Label for the body of work")
	planCmd.Flags().StringVar(&planBase, "base", "", "Base branch workspaces fork from (default from config)")
	planCmd.Flags().IntVar(&planMaxAgents, "max-agents", 0, "Ceiling on agent count (default from config)")
	planCmd.Flags().StringVar(&planDecomposer, "decomposer", "", "Decomposer: rules or claude (default from config)")
	planCmd.Flags().BoolVar(&planInferOverlap, "infer-overlap", false, "Add dependency edges between agents whose files overlap")
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the plan as JSON")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	input, err := readWorkItems(args)
	if err != nil {
		return err
	}
	items := models.ParseWorkItems(input)
	if len(items) == 0 {
		return fmt.Errorf("no work items given; pass them as arguments, via --file, or on stdin")
	}

	base := planBase
	if base == "" {
		base = cfg.BaseBranch
	}
	maxAgents := planMaxAgents
	if maxAgents <= 0 {
		maxAgents = cfg.MaxAgents
	}
	decomposerName := planDecomposer
	if decomposerName == "" {
		decomposerName = cfg.Decomposer
	}
	description := planDescription
	if description == "" {
		description = items[0].Text
	}

	dec, err := buildDecomposer(decomposerName)
	if err != nil {
		return err
	}

	opts := []planner.Option{planner.WithMaxAgents(maxAgents)}
	if planInferOverlap || cfg.InferFileOverlap {
		opts = append(opts, planner.WithOverlapInference())
	}

	plan, err := planner.NewBuilder(dec, opts...).Build(ctx, description, items, base)
	if err != nil {
		return fmt.Errorf("building plan: %w", err)
	}

	repoPath, err := repoRoot()
	if err != nil {
		return err
	}
	db, err := openState(repoPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.SavePlan(plan); err != nil {
		return fmt.Errorf("saving plan: %w", err)
	}

	pipe, err := newPipeline(repoPath)
	if err != nil {
		return err
	}
	pipe.Emitter.Emit(events.Event{
		Type:      events.TypePlanCreated,
		PlanID:    plan.ID,
		Message:   fmt.Sprintf("%d agents from %d items", len(plan.Agents), len(items)),
		Timestamp: time.Now(),
	})
	if err := pipe.Close(); err != nil {
		return err
	}

	warnings := protect.New(cfg.ProtectedPaths...).Scan(plan)

	if planJSON {
		return printJSON(plan)
	}
	displayPlan(plan, len(items))
	for _, w := range warnings {
		printStatus("⚠", "protected path: "+w.String(), color.FgYellow)
	}
	fmt.Printf("\nNext: brigade deploy %s\n", plan.ID)
	return nil
}

// readWorkItems gathers raw item text from arguments, --message,
// --file, or stdin, in that priority order.
func readWorkItems(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, "\n"), nil
	}
	if planMessage != "" {
		return planMessage, nil
	}
	if planFile != "" {
		data, err := os.ReadFile(planFile)
		if err != nil {
			return "", fmt.Errorf("reading work items: %w", err)
		}
		return string(data), nil
	}
	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	return "", nil
}

func buildDecomposer(name string) (decompose.Decomposer, error) {
	switch name {
	case "rules":
		return decompose.NewRuleBased(), nil
	case "claude":
		client, err := newLLMClient()
		if err != nil {
			return nil, err
		}
		return decompose.NewClaude(client), nil
	default:
		return nil, fmt.Errorf("unknown decomposer %q (want rules or claude)", name)
	}
}

func newLLMClient() (*llm.Client, error) {
	clientCfg := llm.ClientConfig{
		Model:         cfg.Anthropic.Model,
		UseAWSBedrock: cfg.Anthropic.Bedrock,
	}
	if !cfg.Anthropic.Bedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("claude decomposer: %w (set ANTHROPIC_API_KEY or anthropic.api_key)", err)
		}
		clientCfg.APIKey = key
	}
	return llm.NewClient(clientCfg)
}

func displayPlan(plan *models.DeploymentPlan, itemCount int) {
	fmt.Printf("Plan %s: %s\n", plan.ID, plan.SourceDescription)
	fmt.Printf("  Base branch: %s\n", plan.BaseBranch)
	fmt.Printf("  Agents: %d (from %d items)\n\n", len(plan.Agents), itemCount)

	for _, a := range plan.Agents {
		fmt.Printf("  %s\n", a.ID)
		fmt.Printf("    Role: %s\n", a.Role)
		if len(a.DependsOn) > 0 {
			fmt.Printf("    Depends on: %s\n", strings.Join(a.DependsOn, ", "))
		}
		if len(a.FilesToCreate) > 0 {
			fmt.Printf("    Creates: %s\n", strings.Join(a.FilesToCreate, ", "))
		}
		if len(a.FilesToModify) > 0 {
			fmt.Printf("    Modifies: %s\n", strings.Join(a.FilesToModify, ", "))
		}
		fmt.Printf("    Criteria: %d\n", len(a.ValidationCriteria))
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
