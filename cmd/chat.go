/*
Copyright © 2025 The Forge Authors
*/
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/forgeproj/forge/internal/diffview"
	"github.com/forgeproj/forge/internal/logger"
	"github.com/forgeproj/forge/internal/refs"
	"github.com/forgeproj/forge/internal/workspace"
	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

var (
	chatSessionFlag string
	chatNewFlag     bool
	chatWebFlag     bool
	chatModelFlag   string
)

var (
	chatAssistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	chatNotifyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	chatFaintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	diffAddedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	diffRemovedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the project assistant",
	Long: `Open an interactive chat session with the project assistant. The
assistant can create documents and tasks directly, and proposes document
edits as diffs you accept or reject.

Transcript commands:
  /diff <n>     preview the diff proposed by message n
  /accept <n>   apply the proposed edit
  /reject <n>   discard the proposed edit
  /pin          pin the current session
  /history      reprint the transcript
  /exit         leave the chat`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	st, err := GetStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	assistant, err := GetAssistant(ctx, st)
	if err != nil {
		return err
	}
	project, err := activeProject(ctx, st)
	if err != nil {
		return err
	}

	sessionID := chatSessionFlag
	startNew := chatNewFlag
	if sessionID == "" && !startNew {
		sessionID, startNew, err = pickSession(ctx, st, project.ID)
		if err != nil {
			return err
		}
	}
	if startNew {
		created, err := st.CreateSession(ctx, models.ChatSession{ProjectID: project.ID, Title: "New chat"})
		if err != nil {
			return fmt.Errorf("create chat session: %w", err)
		}
		sessionID = created.ID
	}

	config := GetConfig()
	sess, err := workspace.Open(ctx, st, assistant, project.ID, workspace.Options{
		SessionID:     sessionID,
		AutosaveDelay: time.Duration(config.Editor.AutosaveDelayMS) * time.Millisecond,
		Events: workspace.Events{
			ArtifactOpened: func(artifact models.Artifact, mode workspace.Mode) {
				if mode == workspace.ModeDiff {
					fmt.Println(chatNotifyStyle.Render(fmt.Sprintf("Proposed edit to %s. Use /diff, /accept, or /reject.", artifact.Name)))
					return
				}
				fmt.Println(chatFaintStyle.Render("Opened " + artifact.Name))
			},
			DiffResolved: func(messageID string, accepted bool) {
				verdict := "discarded"
				if accepted {
					verdict = "applied"
				}
				fmt.Println(chatFaintStyle.Render("Edit " + verdict + "."))
			},
			TasksInvalidated: func() {
				fmt.Println(chatFaintStyle.Render("Task board updated."))
			},
			Notify: func(text string) {
				fmt.Println(chatNotifyStyle.Render(text))
			},
		},
	})
	if err != nil {
		return fmt.Errorf("open chat session: %w", err)
	}
	defer func() { _ = sess.Close(context.Background()) }()

	fmt.Printf("Chatting in %q. Type /exit to leave.\n", project.Name)
	printTranscript(sess.Messages())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		logger.SetLastInput(input)

		if strings.HasPrefix(input, "/") {
			if quit := runChatCommand(ctx, sess, input); quit {
				break
			}
			continue
		}

		reply, err := sess.SendMessage(ctx, store.SendMessageRequest{
			Text:        input,
			WebSearch:   chatWebFlag || config.LLM.WebSearch,
			ModelPreset: chatModelFlag,
		})
		if err != nil {
			fmt.Println(chatNotifyStyle.Render("Message failed: " + err.Error()))
			continue
		}
		printMessage(len(sess.Messages())-1, reply)
		printDetectedRefs(ctx, st, project.ID, input)
	}
	return scanner.Err()
}

// runChatCommand handles slash commands; returns true when the chat should end.
func runChatCommand(ctx context.Context, sess *workspace.Session, input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/exit", "/quit":
		return true
	case "/history":
		printTranscript(sess.Messages())
	case "/pin":
		if err := sess.SetPinned(ctx, true); err != nil {
			fmt.Println(chatNotifyStyle.Render("Pin failed: " + err.Error()))
		} else {
			fmt.Println(chatFaintStyle.Render("Session pinned."))
		}
	case "/unpin":
		if err := sess.SetPinned(ctx, false); err != nil {
			fmt.Println(chatNotifyStyle.Render("Unpin failed: " + err.Error()))
		} else {
			fmt.Println(chatFaintStyle.Render("Session unpinned."))
		}
	case "/diff":
		index, ok := commandIndex(fields)
		if !ok {
			return false
		}
		review, err := sess.PreviewAt(ctx, index)
		if err != nil {
			fmt.Println(chatNotifyStyle.Render("Preview failed: " + err.Error()))
			return false
		}
		printReview(review)
	case "/accept":
		index, ok := commandIndex(fields)
		if !ok {
			return false
		}
		if err := sess.AcceptAt(ctx, index); err != nil {
			if errors.Is(err, workspace.ErrStaleReview) {
				fmt.Println(chatNotifyStyle.Render("The document changed since this edit was proposed. Preview it again before deciding."))
				return false
			}
			fmt.Println(chatNotifyStyle.Render("Accept failed: " + err.Error()))
		}
	case "/reject":
		index, ok := commandIndex(fields)
		if !ok {
			return false
		}
		if err := sess.RejectAt(index); err != nil {
			fmt.Println(chatNotifyStyle.Render("Reject failed: " + err.Error()))
		}
	default:
		fmt.Println(chatFaintStyle.Render("Unknown command " + fields[0]))
	}
	return false
}

func commandIndex(fields []string) (int, bool) {
	if len(fields) < 2 {
		fmt.Println(chatFaintStyle.Render("Usage: " + fields[0] + " <message-number>"))
		return 0, false
	}
	index, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Println(chatFaintStyle.Render("Not a message number: " + fields[1]))
		return 0, false
	}
	return index, true
}

func printTranscript(messages []models.Message) {
	for i, m := range messages {
		printMessage(i, m)
	}
}

func printMessage(index int, m models.Message) {
	speaker := "you"
	if m.Role == models.RoleAssistant {
		speaker = chatAssistantStyle.Render("assistant")
	}
	header := fmt.Sprintf("[%d] %s", index, speaker)
	if m.Content != "" {
		fmt.Printf("%s: %s\n", header, m.Content)
	} else {
		fmt.Println(header + ":")
	}
	for _, call := range m.ToolCalls {
		fmt.Println(chatFaintStyle.Render("    ⚙ " + string(call.Name)))
	}
}

func printReview(review workspace.DiffReview) {
	fmt.Printf("%s %s\n", chatAssistantStyle.Render(review.ArtifactName), chatFaintStyle.Render("("+review.Summary+")"))
	if review.StatusText != "" {
		fmt.Println(chatFaintStyle.Render(review.StatusText))
	}
	if review.OriginalContent == nil {
		// No pre-edit snapshot on record; show the proposed content as-is.
		fmt.Println(review.ProposedContent)
		return
	}

	lines, truncated := diffview.RenderWithLimit(*review.OriginalContent, review.ProposedContent, 0)
	if truncated {
		fmt.Println(chatFaintStyle.Render("Diff too large to display."))
		return
	}
	for _, line := range lines {
		switch line.Type {
		case diffview.LineAdded:
			fmt.Println(diffAddedStyle.Render("+ " + line.Text))
		case diffview.LineRemoved:
			fmt.Println(diffRemovedStyle.Render("- " + line.Text))
		default:
			fmt.Println("  " + line.Text)
		}
	}
}

// printDetectedRefs surfaces document and task mentions in the user's text
// as resolvable deep links.
func printDetectedRefs(ctx context.Context, st store.ProjectStore, projectID, text string) {
	detector, err := refs.DetectorForProject(ctx, st, projectID)
	if err != nil {
		return
	}
	references := detector.References(text)
	if len(references) == 0 {
		return
	}
	names := make([]string, 0, len(references))
	for _, ref := range references {
		names = append(names, fmt.Sprintf("%s (%s)", ref.Name, ref.Type))
	}
	fmt.Println(chatFaintStyle.Render("Mentions: " + strings.Join(names, ", ")))
}

// pickSession lets the user choose an existing session or start a new one.
func pickSession(ctx context.Context, st store.ProjectStore, projectID string) (string, bool, error) {
	sessions, err := st.ListSessions(ctx, projectID)
	if err != nil {
		return "", false, fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return "", false, nil
	}

	items := []string{"+ New chat"}
	for _, s := range sessions {
		title := s.Title
		if s.Pinned {
			title = "📌 " + title
		}
		items = append(items, title)
	}
	prompt := promptui.Select{Label: "Pick a chat session", Items: items}
	i, _, err := prompt.Run()
	if err != nil {
		return "", false, fmt.Errorf("session selection cancelled: %w", err)
	}
	if i == 0 {
		return "", true, nil
	}
	return sessions[i-1].ID, false, nil
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatSessionFlag, "session", "", "chat session ID to resume")
	chatCmd.Flags().BoolVar(&chatNewFlag, "new", false, "start a new chat session")
	chatCmd.Flags().BoolVar(&chatWebFlag, "web", false, "allow the assistant to search the web")
	chatCmd.Flags().StringVar(&chatModelFlag, "model", "", "model preset: powerful, fast, efficient")
}
