package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/reviewsync/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// draftExport is the on-disk form written by "drafts export".
type draftExport struct {
	ExportedAt   string            `json:"exported_at"`
	PullRequests []draftExportedPR `json:"pull_requests"`
}

type draftExportedPR struct {
	PR       string                 `json:"pr"`
	Review   *draftExportedReview   `json:"review,omitempty"`
	Comments []draftExportedComment `json:"comments"`
}

type draftExportedReview struct {
	State    string `json:"state"`
	Author   string `json:"author"`
	CommitID string `json:"commit_id"`
}

type draftExportedComment struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Line        int    `json:"line,omitempty"`
	Side        string `json:"side"`
	Body        string `json:"body"`
	CommitID    string `json:"commit_id,omitempty"`
	InReplyToID *int64 `json:"in_reply_to_id,omitempty"`
	LocalFolder string `json:"local_folder,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func newDraftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Inspect unpublished local review comments",
	}

	var listPR string
	list := &cobra.Command{
		Use:   "list",
		Short: "List pull requests with unpublished drafts, or the drafts of one pull request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			store := sqliteadapter.NewDraftRepo(db)
			prs, err := selectPRs(cmd.Context(), store, listPR)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(prs) == 0 {
				fmt.Fprintln(out, "No unpublished drafts.")
				return nil
			}

			for _, pr := range prs {
				exported, err := collectDrafts(cmd.Context(), store, pr)
				if err != nil {
					return err
				}
				state := "none"
				if exported.Review != nil {
					state = exported.Review.State
				}
				fmt.Fprintf(out, "%s\t%d draft(s)\treview: %s\n", pr, len(exported.Comments), state)

				if listPR == "" {
					continue
				}
				for _, c := range exported.Comments {
					fmt.Fprintf(out, "  #%d %s:%d %s\n", c.ID, c.Path, c.Line, c.Body)
				}
			}
			return nil
		},
	}
	list.Flags().StringVar(&listPR, "pr", "", "show the drafts of one pull request (owner/repo#number)")

	var exportPR string
	export := &cobra.Command{
		Use:   "export <file>",
		Short: "Write unpublished drafts to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			store := sqliteadapter.NewDraftRepo(db)
			prs, err := selectPRs(cmd.Context(), store, exportPR)
			if err != nil {
				return err
			}

			doc := draftExport{
				ExportedAt:   time.Now().UTC().Format(time.RFC3339),
				PullRequests: make([]draftExportedPR, 0, len(prs)),
			}
			total := 0
			for _, pr := range prs {
				exported, err := collectDrafts(cmd.Context(), store, pr)
				if err != nil {
					return err
				}
				total += len(exported.Comments)
				doc.PullRequests = append(doc.PullRequests, exported)
			}

			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding drafts: %w", err)
			}
			if err := atomic.WriteFile(args[0], bytes.NewReader(data)); err != nil {
				return fmt.Errorf("writing %s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d draft(s) from %d pull request(s) to %s.\n", total, len(prs), args[0])
			return nil
		},
	}
	export.Flags().StringVar(&exportPR, "pr", "", "export only one pull request (owner/repo#number)")

	cmd.AddCommand(list, export)
	return cmd
}

// selectPRs returns the single pull request named by flag, or every pull
// request holding unpublished drafts when flag is empty.
func selectPRs(ctx context.Context, store driven.DraftStore, flag string) ([]model.PRRef, error) {
	if flag != "" {
		pr, err := model.ParsePRRef(flag)
		if err != nil {
			return nil, err
		}
		return []model.PRRef{pr}, nil
	}

	prs, err := store.ListDraftPRs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing draft pull requests: %w", err)
	}
	return prs, nil
}

func collectDrafts(ctx context.Context, store driven.DraftStore, pr model.PRRef) (draftExportedPR, error) {
	comments, err := store.ListComments(ctx, pr)
	if err != nil {
		return draftExportedPR{}, fmt.Errorf("listing drafts for %s: %w", pr, err)
	}

	review, err := store.GetReview(ctx, pr)
	if err != nil {
		return draftExportedPR{}, fmt.Errorf("reading review for %s: %w", pr, err)
	}

	exported := draftExportedPR{PR: pr.String(), Comments: []draftExportedComment{}}
	if review != nil {
		exported.Review = &draftExportedReview{
			State:    string(review.State),
			Author:   review.Author,
			CommitID: review.CommitID,
		}
	}

	for _, c := range comments {
		if c.Published {
			continue
		}
		exported.Comments = append(exported.Comments, draftExportedComment{
			ID:          c.ID,
			Path:        c.Path,
			Line:        c.Line,
			Side:        string(c.Side),
			Body:        c.Body,
			CommitID:    c.CommitID,
			InReplyToID: c.InReplyToID,
			LocalFolder: c.LocalFolder,
			CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return exported, nil
}
