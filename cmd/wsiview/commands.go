package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pathoscope/wsiview/internal/annotations"
	"github.com/pathoscope/wsiview/internal/annotations/sqlstore"
	"github.com/pathoscope/wsiview/internal/config"
	"github.com/pathoscope/wsiview/internal/engine"
	"github.com/pathoscope/wsiview/internal/eventloop"
	"github.com/pathoscope/wsiview/internal/overlay"
	"github.com/pathoscope/wsiview/internal/overlay/raster"
	"github.com/pathoscope/wsiview/internal/quadview"
	"github.com/pathoscope/wsiview/internal/store"
	"github.com/pathoscope/wsiview/internal/stream"
	"github.com/pathoscope/wsiview/internal/viewer"
	"github.com/pathoscope/wsiview/pkg/core"
)

const requestTimeout = 30 * time.Second

var errUsage = errors.New("invalid arguments")

func (a *app) health() error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := a.client.Healthcheck(ctx); err != nil {
		return fmt.Errorf("tile server %s unreachable: %w", a.client.BaseURL(), err)
	}
	okColor.Fprintf(a.out, "ok %s\n", a.client.BaseURL())
	return nil
}

func (a *app) slides() error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	items, err := a.client.ListSlides(ctx)
	if err != nil {
		return fmt.Errorf("listing slides: %w", err)
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "no slides")
		return nil
	}
	for _, it := range items {
		fmt.Fprintf(a.out, "%s\t%s\n", it.ID, it.Name)
	}
	return nil
}

func (a *app) slideInfo(ctx context.Context, slideID string) (core.SlideInfo, error) {
	return a.infos.GetOrLoad(ctx, slideID, a.client.SlideInfo)
}

// loadAnnotations reads the configured source. A missing or broken source
// leaves the viewer without annotations rather than failing the command.
func (a *app) loadAnnotations(ctx context.Context) annotations.Set {
	src, err := annotations.New(config.GetAnnotationConfig())
	if err != nil {
		a.logger.Warn("annotation source unavailable", "error", err)
		return annotations.Set{}
	}
	defer src.Close()

	set, err := annotations.Load(ctx, src)
	if err != nil {
		a.logger.Warn("annotations not loaded", "error", err)
		return annotations.Set{}
	}
	a.logger.Info("annotations loaded", "markers", len(set.Markers), "tumorAreas", len(set.TumorAreas))
	return set
}

// viewFlags are the navigation flags shared by snapshot and quad.
type viewFlags struct {
	zoom     string
	pan      string
	selected string
	hide     string
}

func (f *viewFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.zoom, "zoom", "", "zoom to log2 of the on-screen scale, e.g. -2 for 0.25x")
	fs.StringVar(&f.pan, "pan", "", "pan by dx,dy image pixels after opening")
	fs.StringVar(&f.selected, "select", "", "marker id to select")
	fs.StringVar(&f.hide, "hide", "", "comma-separated layers to hide: tumor-areas, box-markers, point-markers or overlay")
}

func (f *viewFlags) applyStore(s *store.Store) error {
	if f.selected != "" {
		s.SetSelected(f.selected)
	}
	for _, name := range splitList(f.hide) {
		if name == "overlay" {
			s.SetOverlayVisible(false)
			continue
		}
		key := store.LayerKey(name)
		switch key {
		case store.LayerTumorAreas, store.LayerBoxMarkers, store.LayerPointMarkers:
			s.SetLayerVisible(key, false)
		default:
			return fmt.Errorf("%w: unknown layer %q", errUsage, name)
		}
	}
	return nil
}

// navigate applies -zoom then -pan. The loop runs in between so a
// synchronized zoom has released its guard before the pan is read.
func (f *viewFlags) navigate(v *viewer.Viewer, loop *eventloop.Loop) error {
	if f.zoom != "" {
		z, err := strconv.ParseFloat(f.zoom, 64)
		if err != nil {
			return fmt.Errorf("%w: zoom %q", errUsage, f.zoom)
		}
		v.ZoomTo(z)
		loop.RunPending()
	}
	if f.pan != "" {
		delta, err := parsePoint(f.pan)
		if err != nil {
			return err
		}
		v.PanBy(delta)
	}
	return nil
}

func parsePoint(s string) (core.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return core.Point{}, fmt.Errorf("%w: expected dx,dy, got %q", errUsage, s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.Point{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.Point{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	return core.Point{X: x, Y: y}, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (a *app) viewerOptions() viewer.Options {
	vc := config.GetViewerConfig()
	opts := viewer.DefaultOptions()
	opts.Width, opts.Height = vc.Width, vc.Height
	opts.MinZoomLog2, opts.MaxZoomLog2 = vc.MinZoomLog2, vc.MaxZoomLog2
	opts.DefaultZoom = vc.DefaultZoom
	opts.ZoomPerScroll = vc.ZoomPerScroll
	return opts
}

func (a *app) snapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	fs.SetOutput(a.out)
	out := fs.String("o", "snapshot.png", "output PNG path")
	tiles := fs.Bool("tiles", false, "print the tile URLs covering the view")
	var vf viewFlags
	vf.register(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: snapshot takes exactly one slide id", errUsage)
	}
	slideID := fs.Arg(0)
	a.session.SetSlide(slideID)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	info, err := a.slideInfo(ctx, slideID)
	if err != nil {
		return fmt.Errorf("loading slide %s: %w", slideID, err)
	}
	set := a.loadAnnotations(ctx)

	loop := eventloop.New(a.logger)
	renderer := raster.New()
	defer renderer.Close()

	v, err := viewer.New(viewer.Dependencies{
		Store:       a.store,
		Loop:        loop,
		Engines:     engine.NewSimFactory(),
		Tiles:       a.client,
		Renderer:    renderer,
		Logger:      a.logger,
		EventLogger: a.events,
	}, a.viewerOptions())
	if err != nil {
		return err
	}
	defer v.Close()

	v.SetAnnotations(set.Markers, set.TumorAreas)
	if err := v.Open(slideID, info); err != nil {
		return err
	}
	loop.RunPending()
	if v.State() != viewer.StateReady {
		return fmt.Errorf("slide %s: %w", slideID, viewer.ErrNotReady)
	}

	if err := vf.applyStore(a.store); err != nil {
		return err
	}
	if err := vf.navigate(v, loop); err != nil {
		return err
	}
	loop.RunPending()

	if err := v.Render(); err != nil {
		return fmt.Errorf("rendering overlay: %w", err)
	}
	if err := writePNG(*out, renderer); err != nil {
		return err
	}

	okColor.Fprintf(a.out, "%s %s\n", slideID, v.Status())
	if id, ok := a.store.Snapshot().Selected(); ok {
		if m, found := core.FindMarker(set.Markers, id); found {
			fmt.Fprintf(a.out, "selected %s: %s\n", m.ID, m.Label)
		}
	}
	if *tiles {
		if sim, ok := v.Engine().(*engine.Sim); ok {
			for _, t := range sim.VisibleTiles() {
				fmt.Fprintln(a.out, t.URL)
			}
		}
	}
	fmt.Fprintf(a.out, "wrote %s\n", *out)
	return nil
}

func writePNG(path string, r *raster.Renderer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := r.WritePNG(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func (a *app) quad(args []string) error {
	fs := flag.NewFlagSet("quad", flag.ContinueOnError)
	fs.SetOutput(a.out)
	syncMode := fs.Bool("sync", false, "synchronize navigation across panels")
	focus := fs.Int("focus", 0, "panel that receives the navigation flags")
	prefix := fs.String("o", "", "write panel-N.png files with this prefix")
	var vf viewFlags
	vf.register(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	ids := fs.Args()
	if len(ids) == 0 || len(ids) > 4 {
		return fmt.Errorf("%w: quad takes one to four slide ids", errUsage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	set := a.loadAnnotations(ctx)
	loop := eventloop.New(a.logger)
	renderers := make([]*raster.Renderer, 4)
	for i := range renderers {
		renderers[i] = raster.New()
		defer renderers[i].Close()
	}

	var observer quadview.ViewObserver
	if sc := config.GetStreamConfig(); sc.Enabled && sc.URL != "" {
		pub := stream.New(stream.Config{URL: sc.URL, Secret: sc.Secret}, a.logger)
		if err := pub.Connect(stream.HelloPayload{Client: appName, Panels: 4, Slides: ids}); err != nil {
			a.logger.Warn("view stream unavailable", "url", sc.URL, "error", err)
		} else {
			defer pub.Close()
			defer pub.Bind(a.store)()
			observer = pub
		}
	}

	vc := config.GetViewerConfig()
	opts := a.viewerOptions()
	opts.Width, opts.Height = vc.PanelWidth, vc.PanelHeight

	grid, err := quadview.New(quadview.Dependencies{
		Store:       a.store,
		Loop:        loop,
		Engines:     engine.NewSimFactory(),
		Tiles:       a.client,
		NewRenderer: func(i int) overlay.Renderer { return renderers[i] },
		Observer:    observer,
		Logger:      a.logger,
		EventLogger: a.events,
	}, opts)
	if err != nil {
		return err
	}
	defer grid.Close()
	grid.SetAnnotations(set.Markers, set.TumorAreas)

	for i, id := range ids {
		info, err := a.slideInfo(ctx, id)
		if err != nil {
			errColor.Fprintf(a.out, "panel %d: %s: %v\n", i, id, err)
			continue
		}
		if err := grid.SetSlot(i, id, info); err != nil {
			fmt.Fprintf(a.out, "panel %d: %v\n", i, err)
		}
	}
	loop.RunPending()

	a.store.SetSyncMode(*syncMode)
	a.store.SetFocusedPanel(*focus)
	if err := vf.applyStore(a.store); err != nil {
		return err
	}

	v, err := grid.Viewer(*focus)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	a.session.SetSlide(v.SlideID())
	if v.State() == viewer.StateReady {
		grid.Synchronizer().SetBaseline(*focus)
		if err := vf.navigate(v, loop); err != nil {
			return err
		}
	}
	loop.RunPending()

	for i, st := range grid.Status() {
		if st.State == viewer.StateUninitialized {
			warnColor.Fprintf(a.out, "panel %d: empty\n", i)
			continue
		}
		scale := ""
		if grid.ShowScale(i) {
			scale = " *"
		}
		fmt.Fprintf(a.out, "panel %d: %s %s%s\n", i, st.SlideID, st, scale)
	}

	if *prefix != "" {
		for i, r := range renderers {
			pv, _ := grid.Viewer(i)
			if pv.State() != viewer.StateReady {
				continue
			}
			if err := pv.Render(); err != nil {
				return fmt.Errorf("rendering panel %d: %w", i, err)
			}
			if err := writePNG(fmt.Sprintf("%s%d.png", *prefix, i), r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *app) importAnnotations(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(a.out)
	dbPath := fs.String("db", config.GetAnnotationConfig().SQLite.Path, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return fmt.Errorf("%w: import takes a markers file and an optional tumor areas file", errUsage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	set, err := annotations.Load(ctx, annotations.NewFileSource(fs.Arg(0), fs.Arg(1)))
	if err != nil {
		return err
	}

	db, err := sqlstore.OpenSQLite(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Import(ctx, set.Markers, set.TumorAreas); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "imported %d markers and %d tumor areas into %s\n",
		len(set.Markers), len(set.TumorAreas), *dbPath)
	return nil
}
