package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"gwgp-assistant-backend/internal/datauri"
	"gwgp-assistant-backend/internal/store"
	"gwgp-assistant-backend/internal/types"
)

// run builds the app for a one-shot command and hands it to fn.
func run(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

func newAskCmd() *cobra.Command {
	var mediaPath string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question, optionally about an image or video",
		RunE: run(func(cmd *cobra.Command, a *app, args []string) error {
			req := types.AnswerRequest{Question: strings.Join(args, " ")}
			if mediaPath != "" {
				uri, err := readDataURI(mediaPath)
				if err != nil {
					return err
				}
				kind := types.MediaImage
				if strings.HasPrefix(uri, "data:video/") {
					kind = types.MediaVideo
				}
				req.Media = &types.Media{DataURI: uri, Type: kind}
			}
			resp, err := a.assistant.Answer(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printMarkdown(cmd, resp, resp.Answer)
		}),
	}
	cmd.Flags().StringVar(&mediaPath, "media", "", "image or video file to ask about")
	return cmd
}

func newEditCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "edit <photo> <instruction>",
		Short: "Edit a photo with a text instruction",
		Args:  cobra.MinimumNArgs(2),
		RunE: run(func(cmd *cobra.Command, a *app, args []string) error {
			uri, err := readDataURI(args[0])
			if err != nil {
				return err
			}
			resp, err := a.assistant.EditImage(cmd.Context(), types.EditImageRequest{
				PhotoDataURI: uri,
				Prompt:       strings.Join(args[1:], " "),
			})
			if err != nil {
				return err
			}
			return saveMedia(cmd, output, resp.EditedPhotoDataURI)
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "edited", "output file")
	return cmd
}

func newSpeakCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Synthesize speech to a WAV file",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(cmd *cobra.Command, a *app, args []string) error {
			resp, err := a.assistant.Speak(cmd.Context(), types.SpeechRequest{Text: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			return saveMedia(cmd, output, resp.Media)
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "speech", "output file")
	return cmd
}

func newVideoCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "video <prompt>",
		Short: "Generate a short video clip",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(cmd *cobra.Command, a *app, args []string) error {
			resp, err := a.assistant.GenerateVideo(cmd.Context(), types.VideoRequest{Prompt: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			return saveMedia(cmd, output, resp.VideoDataURI)
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "video", "output file")
	return cmd
}

func newBriefingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "briefing",
		Short: "Compose today's news briefing",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			resp, err := a.assistant.Briefing(cmd.Context())
			if err != nil {
				return err
			}
			return printMarkdown(cmd, resp, resp.Briefing)
		}),
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the web and summarize",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(cmd *cobra.Command, a *app, args []string) error {
			resp, err := a.assistant.Search(cmd.Context(), types.SearchRequest{Query: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			return printMarkdown(cmd, resp, resp.Results)
		}),
	}
}

func readDataURI(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", errors.New(path + " is empty")
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(b)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return datauri.Encode(mimeType, b), nil
}

func saveMedia(cmd *cobra.Command, output, uri string) error {
	path, err := store.NewFileStore(".").WriteDataURI(output, uri)
	if err != nil {
		return err
	}
	if jsonMode(cmd) {
		return printJSON(cmd, map[string]string{"path": path})
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func printMarkdown(cmd *cobra.Command, v any, md string) error {
	if jsonMode(cmd) {
		return printJSON(cmd, v)
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		if out, rerr := r.Render(md); rerr == nil {
			md = out
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), md)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func jsonMode(cmd *cobra.Command) bool {
	on, _ := cmd.Flags().GetBool("json")
	return on
}
