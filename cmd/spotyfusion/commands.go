package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpserver "spotyfusion/internal/http"
	"spotyfusion/internal/recommend"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize SpotyFusion against a Spotify account",
	Long: `Serves the login and callback routes only, prints the URL to open, and exits
once the authorization code has been exchanged and the tokens are stored.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored Spotify tokens",
	RunE:  runLogout,
}

func newRecommendCmd() *cobra.Command {
	var (
		seeds        []string
		danceability float64
		energy       float64
		valence      float64
		limit        int
		saveAs       string
		appendTo     string
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Print recommendations for the given seeds and target features",
		Example: `  spotyfusion recommend --seed genre:techno --seed spotify:artist:4tZwfgrHOc3mvqYlEYSvVi --energy 0.9
  spotyfusion recommend --seed genre:jazz --valence 0.3 --save-as "Late night"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := recommend.Request{
				Targets: recommend.Features{Danceability: danceability, Energy: energy, Valence: valence},
				Limit:   limit,
			}
			for _, raw := range seeds {
				seed, err := recommend.ParseSeed(raw)
				if err != nil {
					return err
				}
				req.Seeds = append(req.Seeds, seed)
			}
			return runRecommend(cmd.Context(), req, saveAs, appendTo)
		},
	}

	cmd.Flags().StringArrayVar(&seeds, "seed", nil, "Seed reference: artist or track link/URI, or genre:<name> (repeatable)")
	cmd.Flags().Float64Var(&danceability, "danceability", recommend.DefaultFeatures.Danceability, "Target danceability (0-1)")
	cmd.Flags().Float64Var(&energy, "energy", recommend.DefaultFeatures.Energy, "Target energy (0-1)")
	cmd.Flags().Float64Var(&valence, "valence", recommend.DefaultFeatures.Valence, "Target valence (0-1)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of results (default from --recommend-limit)")
	cmd.Flags().StringVar(&saveAs, "save-as", "", "Save the results as a new private playlist with this name")
	cmd.Flags().StringVar(&appendTo, "append-to", "", "Append the results to this playlist (link, URI or id)")
	cmd.MarkFlagsMutuallyExclusive("save-as", "append-to")

	return cmd
}

func runRecommend(ctx context.Context, req recommend.Request, saveAs, appendTo string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = b.tokens.Close() }()

	recommender, err := recommend.NewRecommender(b.catalog, &config.Recommend, config.Spotify.Market, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to create recommender: %w", err)
	}

	results, err := recommender.Recommend(ctx, req)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No recommendations found for these seeds.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tTRACK\tARTISTS\tDANCE\tENERGY\tVALENCE")
	for _, r := range results {
		names := make([]string, 0, len(r.Track.Artists))
		for _, a := range r.Track.Artists {
			names = append(names, a.Name)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.2f\t%.2f\n", r.Score, r.Track.Name, strings.Join(names, ", "),
			r.Features.Danceability, r.Features.Energy, r.Features.Valence)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	exporter := recommend.NewExporter(b.catalog, nil, logger)
	switch {
	case saveAs != "":
		playlist, err := exporter.SaveAsPlaylist(ctx, saveAs, "", false, recommend.URIs(results))
		if err != nil {
			return err
		}
		fmt.Printf("\nSaved %d tracks to playlist %q (%s)\n", len(results), playlist.Name, playlist.ID)
	case appendTo != "":
		added, err := exporter.AppendToPlaylist(ctx, appendTo, recommend.URIs(results))
		if err != nil {
			return err
		}
		fmt.Printf("\nAppended %d new tracks to playlist %s\n", added, appendTo)
	}
	return nil
}

// loginWaiter signals once the first code exchange succeeded.
type loginWaiter struct {
	httpserver.Authenticator
	once sync.Once
	done chan struct{}
}

func (l *loginWaiter) Exchange(ctx context.Context, code string) error {
	if err := l.Authenticator.Exchange(ctx, code); err != nil {
		return err
	}
	l.once.Do(func() { close(l.done) })
	return nil
}

func runLogin(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if config.Spotify.ClientID == "" {
		return fmt.Errorf("spotify client ID is required")
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = b.tokens.Close() }()

	waiter := &loginWaiter{Authenticator: b.auth, done: make(chan struct{})}
	server := httpserver.NewServer(&config.Server, &httpserver.Services{
		Auth:     waiter,
		Language: config.App.Language,
	}, logger)

	serverCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gCtx := errgroup.WithContext(serverCtx)
	g.Go(func() error {
		return server.Start(gCtx)
	})
	g.Go(func() error {
		select {
		case <-waiter.done:
			fmt.Println("✅ Login completed, tokens stored")
			stop()
		case <-gCtx.Done():
		}
		return nil
	})

	loginURL := strings.Replace(config.Spotify.RedirectURL, "/callback", "/login", 1)
	fmt.Printf("Open %s in a browser to connect your Spotify account\n", loginURL)
	logger.Debug("Waiting for the OAuth callback", zap.String("redirectURL", config.Spotify.RedirectURL))

	if err := g.Wait(); err != nil {
		return err
	}
	select {
	case <-waiter.done:
		return nil
	default:
		return fmt.Errorf("login interrupted before the callback arrived")
	}
}

func runLogout(cmd *cobra.Command, _ []string) error {
	b, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = b.tokens.Close() }()

	if err := b.auth.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	fmt.Println("Stored Spotify tokens removed")
	return nil
}
