package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrewpaige1/nodebook-flashcards/cache"
	"github.com/andrewpaige1/nodebook-flashcards/client"
	"github.com/andrewpaige1/nodebook-flashcards/models"
	"github.com/andrewpaige1/nodebook-flashcards/query"
	"github.com/andrewpaige1/nodebook-flashcards/service"
	"github.com/andrewpaige1/nodebook-flashcards/store"
	"github.com/andrewpaige1/nodebook-flashcards/ui"
)

type cardsOptions struct {
	api   string
	local string
	token string
}

// filterFlags are shared by list and study.
type filterFlags struct {
	categories   []string
	search       string
	hideMastered bool
	sort         string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.categories, "category", nil, "only show these categories (repeatable)")
	cmd.Flags().StringVar(&f.search, "search", "", "case-insensitive search in question and answer")
	cmd.Flags().BoolVar(&f.hideMastered, "hide-mastered", false, "hide cards at mastery level 5")
	cmd.Flags().StringVar(&f.sort, "sort", string(query.SortNewest), "newest, oldest, question or mastery")
}

func (f *filterFlags) state(mode ui.ViewMode) ui.State {
	s := ui.NewState()
	for _, a := range []ui.Action{
		ui.SetViewMode{Mode: mode},
		ui.SetSortOrder{Order: query.SortOrder(f.sort)},
		ui.SetCategories{Categories: f.categories},
		ui.SetHideMastered{Hide: f.hideMastered},
		ui.SetSearchQuery{Query: f.search},
	} {
		s = ui.Reduce(s, a)
	}
	return s
}

func cardsCommand(a *app) *cobra.Command {
	opts := &cardsOptions{}
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Browse, edit and study flashcards",
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.api, "api", "http://localhost:8080", "API base URL")
	pf.StringVar(&opts.local, "local", "", "use a local JSON store in this directory instead of the API")
	pf.StringVar(&opts.token, "token", os.Getenv("FLASHCARDS_TOKEN"), "bearer token for write routes")

	cmd.AddCommand(
		listCommand(a, opts),
		statsCommand(a, opts),
		categoriesCommand(a, opts),
		addCommand(a, opts),
		editCommand(a, opts),
		idCommand(a, opts, "increment", "Raise a card's mastery level by one", func(ctx context.Context, c *cache.Cache, id string) (*models.Flashcard, error) {
			card, err := c.IncrementMastery(ctx, id)
			return &card, err
		}),
		idCommand(a, opts, "reset", "Reset a card's mastery level to 0", func(ctx context.Context, c *cache.Cache, id string) (*models.Flashcard, error) {
			card, err := c.ResetMastery(ctx, id)
			return &card, err
		}),
		idCommand(a, opts, "delete", "Delete a card", func(ctx context.Context, c *cache.Cache, id string) (*models.Flashcard, error) {
			return nil, c.Delete(ctx, id)
		}),
		studyCommand(a, opts),
	)
	return cmd
}

// open builds the cache over either the local JSON store or the REST API. The
// store is nil in API mode.
func (o *cardsOptions) open(a *app, errOut io.Writer) (*cache.Cache, *store.JSONStore, error) {
	notifier := cache.NotifierFunc(func(n cache.Notice) {
		fmt.Fprintln(errOut, "!", n.Message())
		a.log.Debug("mutation failed", zap.String("operation", n.Operation), zap.Error(n.Err))
	})

	var (
		gw        service.Gateway
		jsonStore *store.JSONStore
	)
	if o.local != "" {
		s, err := store.NewJSONStore(o.local, store.WithLogger(a.log))
		if err != nil {
			return nil, nil, err
		}
		jsonStore = s
		gw = service.NewFlashcards(s, service.WithLogger(a.log))
	} else {
		gw = client.New(o.api, client.WithToken(o.token), client.WithLogger(a.log))
	}

	return cache.New(gw, cache.WithLogger(a.log), cache.WithNotifier(notifier)), jsonStore, nil
}

func listCommand(a *app, opts *cardsOptions) *cobra.Command {
	var (
		filters  filterFlags
		page     int
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List flashcards",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.open(a, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cards, err := c.List(cmd.Context())
			if err != nil {
				return err
			}

			s := filters.state(ui.ViewAll)
			s = ui.Reduce(s, ui.SetPageSize{Size: pageSize})
			s = ui.Reduce(s, ui.SetPage{Page: page})
			v := ui.Render(s, cards)

			out := cmd.OutOrStdout()
			printCards(out, v.Page.Items)
			fmt.Fprintf(out, "\npage %d/%d, %d of %d cards\n", v.Page.Page, v.Page.TotalPages, v.DeckSize, v.Stats.Total)
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", ui.DefaultPageSize, "cards per page")
	return cmd
}

func statsCommand(a *app, opts *cardsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show mastery statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.open(a, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cards, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			st := query.Statistics(cards)
			fmt.Fprintf(cmd.OutOrStdout(), "total %d, mastered %d, in progress %d, not started %d\n",
				st.Total, st.Mastered, st.InProgress, st.NotStarted)
			return nil
		},
	}
}

func categoriesCommand(a *app, opts *cardsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories with card counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.open(a, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cards, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tCARDS")
			for _, cc := range query.CategoriesWithCounts(cards) {
				fmt.Fprintf(tw, "%s\t%d\n", cc.Name, cc.Count)
			}
			return tw.Flush()
		},
	}
}

func addCommand(a *app, opts *cardsOptions) *cobra.Command {
	var in models.NewFlashcard
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a flashcard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ui.ValidateForm(in); err != nil {
				return err
			}
			c, _, err := opts.open(a, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			card, err := c.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			printCards(cmd.OutOrStdout(), []models.Flashcard{card})
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Question, "question", "", "question text")
	cmd.Flags().StringVar(&in.Answer, "answer", "", "answer text")
	cmd.Flags().StringVar(&in.Category, "category", "", "category")
	return cmd
}

func editCommand(a *app, opts *cardsOptions) *cobra.Command {
	var (
		question, answer, category string
		mastery                    int
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a flashcard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.FlashcardPatch
			flags := cmd.Flags()
			if flags.Changed("question") {
				patch.Question = &question
			}
			if flags.Changed("answer") {
				patch.Answer = &answer
			}
			if flags.Changed("category") {
				patch.Category = &category
			}
			if flags.Changed("mastery") {
				patch.MasteryLevel = &mastery
			}

			c, _, err := opts.open(a, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if _, err := c.List(cmd.Context()); err != nil {
				return err
			}
			card, err := c.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			printCards(cmd.OutOrStdout(), []models.Flashcard{card})
			return nil
		},
	}
	cmd.Flags().StringVar(&question, "question", "", "new question text")
	cmd.Flags().StringVar(&answer, "answer", "", "new answer text")
	cmd.Flags().StringVar(&category, "category", "", "new category")
	cmd.Flags().IntVar(&mastery, "mastery", 0, "new mastery level (0-5)")
	return cmd
}

func idCommand(a *app, opts *cardsOptions, use, short string, run func(context.Context, *cache.Cache, string) (*models.Flashcard, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.open(a, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			// Prime the cache so the write is applied optimistically.
			if _, err := c.List(cmd.Context()); err != nil {
				return err
			}
			card, err := run(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			if card != nil {
				printCards(cmd.OutOrStdout(), []models.Flashcard{*card})
			}
			return nil
		},
	}
}

func studyCommand(a *app, opts *cardsOptions) *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "study",
		Short: "Study cards one at a time",
		Long: `Study cards one at a time. Commands:
  n  next card        p  previous card     f  flip (or just Enter)
  +  mastered more    0  reset mastery     s  toggle shuffle
  h  toggle hiding mastered cards          q  quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, jsonStore, err := opts.open(a, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if jsonStore != nil {
				// Another process editing the same store invalidates our copy.
				if err := jsonStore.Watch(ctx, c.Invalidate); err != nil {
					a.log.Warn("watch local store", zap.Error(err))
				}
			}
			return studyLoop(ctx, c, filters.state(ui.ViewStudy), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	filters.register(cmd)
	return cmd
}

func studyLoop(ctx context.Context, c *cache.Cache, s ui.State, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		cards, err := c.List(ctx)
		if err != nil {
			return err
		}
		v := ui.Render(s, cards)
		printStudyCard(out, v)

		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "", "f":
			s = ui.Reduce(s, ui.FlipCard{})
		case "n":
			s = ui.Reduce(s, ui.NextCard{Total: v.DeckSize})
		case "p":
			s = ui.Reduce(s, ui.PreviousCard{Total: v.DeckSize})
		case "s":
			s = ui.Reduce(s, ui.ToggleShuffle{Seed: rand.Uint64()})
		case "h":
			s = ui.Reduce(s, ui.SetHideMastered{Hide: !s.Filter.HideMastered})
		case "+":
			if v.Current != nil {
				// Failures are reported by the cache notifier.
				_, _ = c.IncrementMastery(ctx, v.Current.ID)
			}
		case "0":
			if v.Current != nil {
				_, _ = c.ResetMastery(ctx, v.Current.ID)
			}
		case "q":
			return nil
		default:
			fmt.Fprintln(out, "unknown command; n, p, f, +, 0, s, h or q")
		}
	}
}

func printStudyCard(w io.Writer, v ui.View) {
	if v.Current == nil {
		fmt.Fprintln(w, "\nNo cards match the current filters.")
		return
	}
	card := v.Current
	fmt.Fprintf(w, "\n[%d/%d] %s  (mastery %d/%d)\n", v.Position+1, v.DeckSize, card.Category, card.MasteryLevel, models.MaxMasteryLevel)
	fmt.Fprintf(w, "Q: %s\n", card.Question)
	if v.Flipped {
		fmt.Fprintf(w, "A: %s\n", card.Answer)
	}
}

func printCards(w io.Writer, cards []models.Flashcard) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tMASTERY\tQUESTION")
	for _, c := range cards {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.ID, c.Category, c.MasteryLevel, c.Question)
	}
	tw.Flush()
}
