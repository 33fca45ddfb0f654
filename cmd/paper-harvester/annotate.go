package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-harvester/internal/annotate"
	"github.com/pdiddy/paper-harvester/internal/secrets"
	"github.com/pdiddy/paper-harvester/internal/store"
	"github.com/pdiddy/paper-harvester/pkg/types"
)

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Classify stored papers into research categories",
	Long: `Annotate reads the structured store, asks an AI backend to classify each
paper by title and abstract, and writes a parallel CSV with one extra
category column. Papers the backend cannot classify are labelled
Uncategorized. The harvest stores are never modified.`,
	RunE: runAnnotate,
}

func init() {
	// Load .env if present (for OPENAI_API_KEY / GEMINI_API_KEY).
	_ = godotenv.Load()

	annotateCmd.Flags().String("input", "dataset.json", "structured store to read")
	annotateCmd.Flags().String("output", "dataset_annotated.csv", "annotated CSV path")
	annotateCmd.Flags().String("backend", "openai", "AI backend: openai or gemini")
	annotateCmd.Flags().String("model", "", "model identifier (defaults per backend)")
	annotateCmd.Flags().String("api-key", "", "API key (falls back to .secrets/, then the environment)")
	annotateCmd.Flags().Int("max-retries", 3, "retry attempts per classification call")
	annotateCmd.Flags().String("categories", "", "comma-separated category labels (default: built-in set)")

	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	backend := configString(cmd, "backend", "annotation.backend")

	keyFlag, _ := cmd.Flags().GetString("api-key")
	secretKey, envVar := "openai-api-key", "OPENAI_API_KEY"
	if types.AnnotationBackend(backend) == types.BackendGemini {
		secretKey, envVar = "gemini-api-key", "GEMINI_API_KEY"
	}
	apiKey := secrets.Resolve(keyFlag, loadedSecrets, secretKey, envVar)
	if apiKey == "" {
		return fmt.Errorf("no API key: provide --api-key, .secrets/%s, or %s", secretKey, envVar)
	}

	cfg := types.AnnotationConfig{
		AIConfig: types.AIConfig{
			Backend:    types.AnnotationBackend(backend),
			Model:      configString(cmd, "model", "annotation.model"),
			APIKey:     apiKey,
			MaxRetries: configInt(cmd, "max-retries", "annotation.max_retries"),
		},
		Categories: splitCategories(configString(cmd, "categories", "annotation.categories")),
		InputPath:  configString(cmd, "input", "annotation.input"),
		OutputPath: configString(cmd, "output", "annotation.output"),
	}

	// Only the structured store is read; no tabular path is needed.
	records, err := store.New("", cfg.InputPath, logger).ReadAll()
	if err != nil {
		return err
	}

	ai, err := annotate.NewBackend(cfg.AIConfig)
	if err != nil {
		return err
	}
	classifier := annotate.NewClassifier(ai, cfg, logger)

	_, err = annotate.Run(cmd.Context(), classifier, records, cfg.OutputPath, os.Stdout)
	return err
}

func splitCategories(s string) []string {
	if s == "" {
		return nil
	}
	var cats []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	return cats
}
