package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"persona/internal/domain"
	"persona/internal/persona"
	"persona/internal/workflow"
)

func newGenerateCmd() *cobra.Command {
	var imagePath, uid string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the five-emotion batch for one face",
		Long: `Uploads the face once per emotion, waits for every job and prints the
aggregate result as JSON. With --uid the successful URLs are stored.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			img, err := persona.LoadImage(imagePath)
			if err != nil {
				return err
			}
			rt, logger, err := buildRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.Generator.Generate(cmd.Context(), uid, img, func(p persona.Progress) {
				logger.Info().
					Str("emotion", string(p.Result.Emotion)).
					Str("status", string(p.Result.Status)).
					Msgf("%d/%d done", p.Index, p.Total)
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.Status == domain.StatusFailed {
				return fmt.Errorf("every emotion failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "path to the face image")
	cmd.Flags().StringVar(&uid, "uid", "", "store the result under this user id")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newRegenerateCmd() *cobra.Command {
	var imagePath, uid, emotionFlag string
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Rerun a single emotion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			emotion, err := domain.ParseEmotion(emotionFlag)
			if err != nil {
				return err
			}
			img, err := persona.LoadImage(imagePath)
			if err != nil {
				return err
			}
			rt, _, err := buildRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.Generator.Regenerate(cmd.Context(), uid, emotion, img)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Succeeded() {
				return fmt.Errorf("%s: %s", emotion, res.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&emotionFlag, "emotion", "", "one of joy, sadness, anger, disgust, serious")
	cmd.Flags().StringVar(&imagePath, "image", "", "path to the face image")
	cmd.Flags().StringVar(&uid, "uid", "", "replace this emotion for the user id")
	_ = cmd.MarkFlagRequired("emotion")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that a workflow template has every bound node",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, err := workflow.NewLoader(workflow.DefaultBindings())
			if err != nil {
				return err
			}
			tpl, err := loader.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d nodes, bound %v)\n", path, len(tpl), loader.Bindings().NodeIDs())
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "workflow", "assets/workflows/persona.json", "workflow template path")
	return cmd
}
