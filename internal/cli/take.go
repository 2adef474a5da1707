package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/soldier14/survey-runtime/internal/app"
	"github.com/soldier14/survey-runtime/internal/config"
	"github.com/soldier14/survey-runtime/internal/domain"
	"github.com/spf13/cobra"
)

// NewTakeCmd builds the CLI subcommand that runs one survey take in the
// terminal, driving the same session state machine the renderer bridge
// uses.
func NewTakeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "take <survey>",
		Short: "Take a survey interactively in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTake(cmd.Context(), *configPath, args[0])
		},
	}
}

func runTake(ctx context.Context, configPath, ref string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("config %s not loaded (%v), using defaults", configPath, err)
		cfg = config.Config{}
	}

	service, backend, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	session, err := service.Open(ctx, ref, backend)
	if err != nil {
		return err
	}

	persisted := make(chan domain.Summary, 1)
	session.SetCompletionListener(func(s domain.Summary) { persisted <- s })

	printSummary(session.State().Summary)

	if err := session.Take(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		state := session.State()
		if state.Phase == app.PhaseSummary {
			break
		}
		content := state.Content

		fmt.Printf("\n--- %s (page %d/%d) ---\n", content.PageTitle, content.PageIndex+1, content.PageCount)
		for _, view := range content.Answers {
			if msg, ok := content.Errors[view.Question.ID]; ok {
				fmt.Printf("! %s\n", msg)
			}
			promptAnswer(session, scanner, view)
		}

		fmt.Print("\n[enter] next page, (b)ack, (q)uit without saving: ")
		if !scanner.Scan() {
			return session.Cancel()
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "b":
			if err := session.Back(); err != nil && err != domain.ErrFirstPage {
				return err
			}
		case "q":
			return session.Cancel()
		default:
			if err := session.Advance(); err != nil {
				return err
			}
		}
	}

	select {
	case <-persisted:
	case <-time.After(5 * time.Second):
		log.Printf("timed out waiting for run persistence")
	}

	fmt.Println("\nRun completed.")
	printSummary(session.State().Summary)
	return nil
}

func printSummary(view *app.SummaryView) {
	if view == nil {
		return
	}
	s := view.Summary
	fmt.Printf("\n%s (%s): %d pages, %d questions, %d completed\n",
		s.Title, s.Kind, s.PageCount, s.QuestionCount, s.CompletedCount)
	if s.MaxScore != nil && s.MinScore != nil {
		fmt.Printf("scores: %d .. %d\n", *s.MinScore, *s.MaxScore)
	}
	if view.ShowLeaderboard && len(view.Leaderboard) > 0 {
		fmt.Println("leaderboard:")
		for i, entry := range view.Leaderboard {
			if view.ShowScores {
				fmt.Printf("  %2d. %-20s %d\n", i+1, entry.DisplayName, entry.Score)
			} else {
				fmt.Printf("  %2d. %s\n", i+1, entry.DisplayName)
			}
		}
	}
}

func promptAnswer(session *app.Session, scanner *bufio.Scanner, view app.AnswerView) {
	question := view.Question
	id := question.ID

	switch spec := question.Spec.(type) {
	case domain.InformationSpec:
		fmt.Printf("\n%s\n%s\n", question.Title, spec.Body)

	case domain.TextSpec:
		fmt.Printf("\n%s%s [%s]: ", question.Title, requiredMark(question), view.Display)
		if line, ok := readLine(scanner); ok && line != "" {
			_ = session.UpdateText(id, line)
		}

	case domain.DataSpec:
		fmt.Printf("\n%s%s [%s]: ", question.Title, requiredMark(question), view.Display)
		if line, ok := readLine(scanner); ok && line != "" {
			_ = session.UpdateText(id, line)
		}

	case domain.ChoiceSpec:
		fmt.Printf("\n%s%s\n", question.Title, requiredMark(question))
		for i, opt := range spec.Options {
			fmt.Printf("  %d) %s\n", i+1, opt.Label)
		}
		hint := "number"
		if spec.Multi {
			hint = "numbers, comma separated"
		}
		fmt.Printf("select %s: ", hint)
		if line, ok := readLine(scanner); ok && line != "" {
			var labels []string
			for _, part := range strings.Split(line, ",") {
				if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && n >= 1 && n <= len(spec.Options) {
					labels = append(labels, spec.Options[n-1].Label)
				}
			}
			_ = session.UpdateSelection(id, labels)
		}

	case domain.RatingSpec:
		fmt.Printf("\n%s%s (1-%d): ", question.Title, requiredMark(question), spec.Levels)
		if line, ok := readLine(scanner); ok {
			if n, err := strconv.Atoi(line); err == nil {
				_ = session.UpdateRating(id, n)
			}
		}

	case domain.SliderSpec:
		if spec.Range {
			fmt.Printf("\n%s%s (two values in %v..%v): ", question.Title, requiredMark(question), spec.Min, spec.Max)
			if line, ok := readLine(scanner); ok {
				parts := strings.Fields(line)
				if len(parts) == 2 {
					low, err1 := strconv.ParseFloat(parts[0], 64)
					high, err2 := strconv.ParseFloat(parts[1], 64)
					if err1 == nil && err2 == nil {
						_ = session.UpdateSliderRange(id, low, high)
					}
				}
			}
		} else {
			fmt.Printf("\n%s%s (%v..%v): ", question.Title, requiredMark(question), spec.Min, spec.Max)
			if line, ok := readLine(scanner); ok {
				if v, err := strconv.ParseFloat(line, 64); err == nil {
					_ = session.UpdateSliderValue(id, v)
				}
			}
		}

	case domain.LikertSpec:
		fmt.Printf("\n%s%s (%s)\n", question.Title, requiredMark(question), strings.Join(spec.Choices, " / "))
		for _, st := range spec.Statements {
			fmt.Printf("  %s: ", st.Label)
			if line, ok := readLine(scanner); ok {
				if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(spec.Choices) {
					_ = session.UpdateLikert(id, st.Label, spec.Choices[n-1])
				}
			}
		}

	case domain.DateTimeSpec:
		fmt.Printf("\n%s%s\n", question.Title, requiredMark(question))
		if spec.Mode != domain.ModeTime {
			fmt.Print("date (YYYY-MM-DD): ")
			if line, ok := readLine(scanner); ok {
				if d, err := time.Parse("2006-01-02", line); err == nil {
					_ = session.UpdateDate(id, d)
				}
			}
		}
		if spec.Mode != domain.ModeDate {
			fmt.Print("time (HH:MM): ")
			if line, ok := readLine(scanner); ok {
				if c, err := time.Parse("15:04", line); err == nil {
					_ = session.UpdateTime(id, c)
				}
			}
		}
	}
}

func requiredMark(q domain.Question) string {
	if q.Required {
		return " *"
	}
	return ""
}

func readLine(scanner *bufio.Scanner) (string, bool) {
	if !scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(scanner.Text()), true
}
