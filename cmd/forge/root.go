// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianForge/pkg/logging"
	"github.com/AleutianAI/AleutianForge/services/forge/config"
	"github.com/AleutianAI/AleutianForge/services/llm"
)

// appState carries the loaded configuration and model client to every
// subcommand. Populated by the root PersistentPreRunE.
type appState struct {
	cfg      *config.Config
	client   llm.Client
	closeLog func()
}

func newRootCmd() *cobra.Command {
	state := &appState{}
	var configPath, logLevel string
	var jsonLog bool

	root := &cobra.Command{
		Use:           "forge",
		Short:         "LLM code generation pipelines",
		Long:          "forge runs multi-phase LLM pipelines that plan, implement, review, and refine Python functions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			state.cfg = cfg

			_, closeLog, err := logging.Setup(logging.Config{
				Level:     logLevel,
				Service:   "forge",
				ForceJSON: jsonLog,
			})
			if err != nil {
				return err
			}
			state.closeLog = closeLog

			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			state.client = client
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if state.closeLog != nil {
				state.closeLog()
			}
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "forge.yaml", "config file path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "force JSON log output")

	root.AddCommand(
		newPlanCmd(state),
		newCodeCmd(state),
		newCritiqueCmd(state),
		newSolveCmd(state),
		newBatchCmd(state),
		newServeCmd(state),
	)
	return root
}

// newClient builds the model client the configuration selects.
func newClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.Backend.Type {
	case "ollama":
		return llm.NewOllamaClient(cfg.Backend.BaseURL, cfg.Backend.Model)
	case "openai":
		return llm.NewOpenAIClient()
	case "langchain-ollama":
		return llm.NewLangChainOllama(cfg.Backend.BaseURL, cfg.Backend.Model)
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Backend.Type)
	}
}
