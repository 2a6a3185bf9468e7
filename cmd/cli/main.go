// Package main provides the promo-composer CLI.
// Uses Cobra for command parsing. Cobra is the standard Go CLI framework
// (used by kubectl, docker, hugo, and many others).
//
// Run with: go run ./cmd/cli render --format story --title "Louvre" --photo louvre.jpg
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/config"
	"github.com/fleveque/promo-composer/internal/export"
	"github.com/fleveque/promo-composer/internal/layout"
	"github.com/fleveque/promo-composer/internal/model"
	"github.com/fleveque/promo-composer/internal/render"
	"github.com/fleveque/promo-composer/internal/server"
	"github.com/fleveque/promo-composer/internal/service"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCmd creates the root command. Cobra builds a tree of commands:
// promo-cli render --format story
// promo-cli export --formats all
// promo-cli search --query 18695
func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "promo-cli",
		Short: "Promotional poster composer CLI",
	}

	root.AddCommand(renderCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(formatsCmd())
	return root
}

// posterFlags are the content, style and transform flags shared by render and export.
type posterFlags struct {
	title, subtitle, cta string
	photo, logo          string
	qr                   string

	noPanel  bool
	preset   string
	colors   []string
	angle    float64
	asset    string
	maskAsst bool

	offsetX, offsetY, scale float64

	encoding string
	quality  int
}

func (f *posterFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "Poster title; \\n starts a new line")
	fl.StringVar(&f.subtitle, "subtitle", "", "Subtitle below the title")
	fl.StringVar(&f.cta, "cta", "", "Call-to-action label; empty hides the button")
	fl.StringVar(&f.photo, "photo", "", "Photo file path or http(s) URL")
	fl.StringVar(&f.logo, "logo", "", "Logo file path or URL (defaults to the bundled logo)")
	fl.StringVar(&f.qr, "qr", "", "Encode this URL as a QR code")
	fl.BoolVar(&f.noPanel, "no-panel", false, "Hide the decorative panel")
	fl.StringVar(&f.preset, "preset", "", "Panel preset name")
	fl.StringSliceVar(&f.colors, "colors", nil, "Panel gradient colors, e.g. #60a5fa,#3b82f6")
	fl.Float64Var(&f.angle, "angle", 135, "Panel gradient angle in degrees")
	fl.StringVar(&f.asset, "asset", "", "Panel asset file path or URL")
	fl.BoolVar(&f.maskAsst, "mask-asset", false, "Paint the gradient through the asset's alpha")
	fl.Float64Var(&f.offsetX, "offset-x", 0, "Photo offset X in canvas pixels")
	fl.Float64Var(&f.offsetY, "offset-y", 0, "Photo offset Y in canvas pixels")
	fl.Float64Var(&f.scale, "scale", 1, "Photo scale")
	fl.StringVar(&f.encoding, "encoding", "png", "Output encoding: png, jpeg, webp")
	fl.IntVar(&f.quality, "quality", 0, "Quality for lossy encodings (1-100)")
}

func (f *posterFlags) content() (model.Content, error) {
	photo, err := source(f.photo)
	if err != nil {
		return model.Content{}, err
	}
	logo, err := source(f.logo)
	if err != nil {
		return model.Content{}, err
	}
	return model.Content{
		Title:    strings.ReplaceAll(f.title, `\n`, "\n"),
		Subtitle: f.subtitle,
		CTA:      f.cta,
		Photo:    photo,
		Logo:     logo,
	}, nil
}

func (f *posterFlags) style(format string) (model.Style, error) {
	panel := model.Panel{Visible: !f.noPanel, Mode: model.PanelGradient, Angle: f.angle, Colors: f.colors}
	switch {
	case f.asset != "":
		asset, err := source(f.asset)
		if err != nil {
			return model.Style{}, err
		}
		panel.Mode = model.PanelAsset
		panel.Asset = asset
		panel.MaskWithGradient = f.maskAsst
	case f.preset != "":
		panel.Mode = model.PanelPreset
		panel.Preset = f.preset
	}
	return model.Style{Format: model.Format(format), Panel: panel, QRCodeURL: f.qr}, nil
}

func (f *posterFlags) transform() model.Transform {
	return model.Transform{OffsetX: f.offsetX, OffsetY: f.offsetY, Scale: f.scale}
}

// source turns a flag value into an asset: URLs are fetched by the renderer,
// files are read now. Empty means absent.
func source(arg string) (*model.Source, error) {
	if arg == "" {
		return nil, nil
	}
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return &model.Source{URL: arg}, nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", arg, err)
	}
	return &model.Source{Name: filepath.Base(arg), Data: data}, nil
}

func renderCmd() *cobra.Command {
	var (
		flags  posterFlags
		format string
		width  int
		out    string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one poster to an image file",
		// RunE returns an error (vs Run which doesn't). Cobra prints the error automatically.
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPosterService(func(ctx context.Context, svc *service.PosterService, logger *zap.Logger) error {
				req, err := renderRequest(&flags, format, width)
				if err != nil {
					return err
				}
				data, err := svc.Render(ctx, req)
				if err != nil {
					return err
				}
				if out == "" {
					f, _ := model.ParseFormat(format)
					out = export.FileName(f, req.Encoding)
				}
				if err := writeFile(out, data); err != nil {
					return err
				}
				logger.Info("poster written", zap.String("path", out), zap.Int("bytes", len(data)))
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "story", "Format: story, square, landscape or WxH")
	cmd.Flags().IntVar(&width, "width", 0, "Scale the output down to this width")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default promotional-image-<format>.<ext>)")
	return cmd
}

func renderRequest(flags *posterFlags, format string, width int) (service.RenderRequest, error) {
	enc, err := export.ParseEncoding(flags.encoding)
	if err != nil {
		return service.RenderRequest{}, err
	}
	content, err := flags.content()
	if err != nil {
		return service.RenderRequest{}, err
	}
	style, err := flags.style(format)
	if err != nil {
		return service.RenderRequest{}, err
	}
	return service.RenderRequest{
		Content:      content,
		Style:        style,
		Transform:    flags.transform(),
		Encoding:     enc,
		Quality:      flags.quality,
		PreviewWidth: width,
	}, nil
}

func exportCmd() *cobra.Command {
	var (
		flags   posterFlags
		formats []string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render several formats into one zip bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPosterService(func(ctx context.Context, svc *service.PosterService, logger *zap.Logger) error {
				enc, err := export.ParseEncoding(flags.encoding)
				if err != nil {
					return err
				}
				content, err := flags.content()
				if err != nil {
					return err
				}
				style, err := flags.style("")
				if err != nil {
					return err
				}

				res, err := svc.Export(ctx, service.ExportRequest{
					Content:   content,
					Style:     style,
					Transform: flags.transform(),
					Formats:   formats,
					Encoding:  enc,
					Quality:   flags.quality,
				})
				if err != nil {
					return err
				}
				if err := writeFile(out, res.Data); err != nil {
					return err
				}
				logger.Info("bundle written",
					zap.String("path", out),
					zap.Strings("entries", res.Entries),
					zap.Int64("bytes", res.Size),
				)
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringSliceVar(&formats, "formats", []string{"all"}, "Formats to include, or all")
	cmd.Flags().StringVarP(&out, "out", "o", "promotional-images.zip", "Output path")
	return cmd
}

func searchCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find candidate photos for a tour number or attraction name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(query)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Tour number or attraction name")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func runSearch(query string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	deps, closeDeps, err := server.NewDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDeps()
	defer deps.Sessions.CloseAll()

	ctx, cancel := signalContext(logger)
	defer cancel()

	res, err := deps.SearchService.Search(ctx, query)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List output formats and their layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := layout.NewRegistry(render.DefaultFonts())
			for _, f := range registry.Formats() {
				d, err := registry.Layout(f, "")
				if err != nil {
					return err
				}
				fmt.Printf("%-10s %4dx%-4d photo %.0fx%.0f at (%.0f,%.0f) scale %.2f-%.2f\n",
					f, d.Width, d.Height, d.Photo.W, d.Photo.H, d.Photo.X, d.Photo.Y, d.ScaleMin, d.ScaleMax)
			}
			fmt.Printf("panel presets: %s\n", strings.Join(render.PresetNames(), ", "))
			return nil
		},
	}
}

// withPosterService builds a renderer that keeps nothing on disk and runs fn
// with a context cancelled on Ctrl+C.
func withPosterService(fn func(context.Context, *service.PosterService, *zap.Logger) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registry, renderer, err := server.NewEngine(cfg, logger)
	if err != nil {
		return err
	}
	svc := service.NewPosterService(registry, renderer, service.NewImageProcessor(), nil, nil, cfg.Render.Timeout, logger)

	ctx, cancel := signalContext(logger)
	defer cancel()
	return fn(ctx, svc, logger)
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(os.Getenv("PROMO_CONFIG_PATH"))
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	// Always use development mode for the CLI.
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}

// signalContext is cancelled on SIGINT or SIGTERM so long renders and
// downloads stop cleanly.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	// 0644: owner rw, group/others read.
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
