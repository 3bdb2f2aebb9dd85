// Package main provides the fable command-line host: it loads table
// content, builds the resolution engine, and resolves templates or
// performs advanced rolls for a story.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fable/internal/config"
	"github.com/cory-johannsen/fable/internal/engine"
	"github.com/cory-johannsen/fable/internal/engine/roll"
	"github.com/cory-johannsen/fable/internal/engine/table"
	"github.com/cory-johannsen/fable/internal/observability"
	"github.com/cory-johannsen/fable/internal/oracle"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	tablesDir := flag.String("tables", "", "override for the table content directory")
	scriptsDir := flag.String("scripts", "", "override for the generator scripts directory")
	template := flag.String("template", "", "template string to resolve")
	tableName := flag.String("table", "", "table to roll on instead of resolving a template")
	rollType := flag.String("rolltype", "", "roll strategy: standard, advantage, disadvantage, exploding, reroll")
	storyID := flag.String("story", "default", "story identifier for consumption tracking")
	count := flag.Int("count", 1, "number of resolutions or rolls")
	vars := flag.String("vars", "", "comma-separated key=value story variables")
	askOracle := flag.Bool("oracle", false, "print an oracle prompt for the roll results")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	if *tablesDir != "" {
		cfg.Engine.TablesDir = *tablesDir
	}
	if *scriptsDir != "" {
		cfg.Engine.ScriptsDir = *scriptsDir
	}

	eng := engine.New(logger, engine.Options{
		CacheTTL:               cfg.Engine.CacheTTL,
		CacheMaxSize:           cfg.Engine.CacheMaxSize,
		MaxDepth:               cfg.Engine.MaxDepth,
		ScriptInstructionLimit: cfg.Engine.ScriptInstructionLimit,
	})
	defer eng.Close()

	start := time.Now()
	if err := eng.LoadContent(cfg.Engine.TablesDir, cfg.Engine.ScriptsDir); err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}

	ctx := roll.NewContext(*storyID)
	for k, v := range parseVars(*vars) {
		ctx.WithVariable(k, v)
	}

	switch {
	case *template != "":
		for i := 0; i < *count; i++ {
			fmt.Println(eng.ResolveTemplate(*template, ctx))
		}

	case *tableName != "":
		var opts *table.RollOptions
		if *rollType != "" {
			rt := table.RollType(*rollType)
			if !table.ValidRollType(rt) {
				logger.Fatal("unknown roll type", zap.String("rolltype", *rollType))
			}
			opts = &table.RollOptions{Type: rt}
		}
		results := make([]*roll.TableResult, 0, *count)
		for i := 0; i < *count; i++ {
			res, err := eng.Roll(*tableName, ctx, opts)
			if err != nil {
				logger.Fatal("rolling", zap.String("table", *tableName), zap.Error(err))
			}
			printResult(res, 0)
			ctx.Record(res)
			results = append(results, res)
		}
		if *askOracle {
			q := oracle.Query{
				StoryID:   *storyID,
				Results:   results,
				Variables: ctx.Variables,
			}
			if cfg.Oracle.Enabled {
				orc := oracle.New(oracle.NewCompleter(cfg.Oracle), logger)
				answer, err := orc.Ask(context.Background(), q)
				if err != nil {
					logger.Fatal("asking oracle", zap.Error(err))
				}
				fmt.Printf("\n%s\n", answer)
			} else {
				// Without a configured completer, emit the prompt so the
				// caller can take it to a model by hand.
				system, user := oracle.BuildPrompt(q)
				fmt.Printf("\n--- system ---\n%s\n--- user ---\n%s", system, user)
			}
		}

	default:
		fmt.Fprintln(os.Stderr, "usage: fable -template <text> | -table <name> [-rolltype <type>] [-story <id>] [-count <n>]")
		os.Exit(1)
	}

	logger.Info("done",
		zap.Duration("elapsed", time.Since(start)),
		zap.Any("metrics", eng.MetricsSnapshot()),
	)
}

func printResult(res *roll.TableResult, indent int) {
	prefix := strings.Repeat("  ", indent)
	fmt.Printf("%s[%s, rolled %d] %s\n", prefix, res.TableID, res.Roll, res.Description)
	for _, linked := range res.Linked {
		printResult(linked, indent+1)
	}
}

// parseVars turns "a=1,b=two" into a variable map. Integer values are
// kept numeric so the evaluator can compare them.
func parseVars(s string) map[string]any {
	out := make(map[string]any)
	if s == "" {
		return out
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && fmt.Sprint(n) == v {
			out[k] = n
			continue
		}
		out[k] = v
	}
	return out
}
