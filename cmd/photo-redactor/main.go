package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	redactor "github.com/menta2k/photo-redactor"
	"github.com/menta2k/photo-redactor/internal/config"
	"github.com/menta2k/photo-redactor/internal/utils"
	"github.com/menta2k/photo-redactor/pkg/compositor"
	"github.com/menta2k/photo-redactor/pkg/processing"
	"github.com/menta2k/photo-redactor/pkg/stickers"
)

type options struct {
	in, out    string
	script     string
	debug      bool
	watch      bool
	seed       uint64
	importPath string
	thumbDir   string
}

func main() {
	klog.InitFlags(nil)

	var opts options
	var configPath, backend, faces, format, model, url, assets string

	flag.StringVar(&opts.in, "in", "", "input image path or URL (jpg/png/webp)")
	flag.StringVar(&opts.out, "out", "", "output path (default: <output_dir>/<prefix><name><suffix>.<format>)")
	flag.StringVar(&configPath, "config", "", "config file (default: "+config.GetConfigPath()+" if present)")
	flag.StringVar(&backend, "backend", "", "face detection backend: none|file|ollama|llamacpp|gemini")
	flag.StringVar(&faces, "faces", "", "JSON file with face boxes in source pixels (implies -backend file)")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.StringVar(&url, "url", "", "vision server URL")
	flag.StringVar(&assets, "stickers", "", "sticker asset directory")
	flag.StringVar(&opts.script, "script", "", "JSON edit script replayed before export")
	flag.StringVar(&format, "format", "", "output format: png|jpg|webp")
	flag.BoolVar(&opts.debug, "debug", false, "also write the photo with detected face boxes")
	flag.BoolVar(&opts.watch, "watch", false, "re-run script and export whenever the script changes")
	flag.Uint64Var(&opts.seed, "seed", 0, "seed for randomize (0 = random)")
	flag.StringVar(&opts.importPath, "import", "", "import an image as a custom sticker and exit")
	flag.StringVar(&opts.thumbDir, "thumbs", "", "write sticker thumbnails into this directory and exit")
	flag.Parse()
	defer klog.Flush()

	cfg, err := loadConfig(configPath)
	if err != nil {
		klog.Exitf("config: %v", err)
	}
	if backend != "" {
		cfg.Detection.Backend = backend
	}
	if faces != "" {
		cfg.Detection.Backend = config.BackendFile
		cfg.Detection.FacesFile = faces
	}
	if model != "" {
		cfg.Detection.Model = model
	}
	if url != "" {
		cfg.Detection.URL = url
	}
	if assets != "" {
		cfg.Stickers.AssetDir = assets
	}
	if format != "" {
		cfg.Output.Format = format
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ed, err := redactor.NewWithConfig(ctx, cfg)
	if err != nil {
		klog.Exitf("%v", err)
	}
	defer ed.Close()
	if opts.seed != 0 {
		ed.SetSeed(opts.seed)
	}

	if opts.importPath != "" || opts.thumbDir != "" {
		if err := manageStickers(ed, opts); err != nil {
			klog.Exitf("%v", err)
		}
		return
	}

	if opts.in == "" {
		klog.Exitf("usage: %s -in input.jpg|URL [-faces faces.json | -backend ollama|llamacpp|gemini] [-script edits.json] [-out out.png] [-format png|jpg|webp] [-debug] [-watch]", filepath.Base(os.Args[0]))
	}

	if err := run(ctx, ed, opts); err != nil {
		if compositor.IsRetryable(err) {
			klog.Errorf("export failed, retry may help: %v", err)
		}
		klog.Exitf("%v", err)
	}

	if opts.watch {
		if opts.script == "" {
			klog.Exitf("-watch needs -script")
		}
		if err := watch(ctx, ed, opts); err != nil {
			klog.Exitf("watch: %v", err)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, err
		}
		klog.V(1).Infof("loaded config %s", path)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func manageStickers(ed *redactor.Editor, opts options) error {
	if opts.importPath != "" {
		s, err := ed.Stickers().ImportCustom(opts.importPath)
		if err != nil {
			return err
		}
		klog.Infof("imported sticker %s", s.ID)
	}
	if opts.thumbDir != "" {
		thumbs, err := ed.Stickers().WriteThumbnails(opts.thumbDir, 96)
		if err != nil {
			return err
		}
		klog.Infof("wrote %d thumbnails to %s", len(thumbs), opts.thumbDir)
	}
	return nil
}

// run opens the photo, replays the script and exports the result
func run(ctx context.Context, ed *redactor.Editor, opts options) error {
	if err := ed.Open(ctx, opts.in); err != nil {
		return err
	}

	if opts.debug {
		if err := writeDebug(ed); err != nil {
			klog.Warningf("debug overlay failed: %v", err)
		}
	}

	if opts.script != "" {
		cmds, err := LoadScript(opts.script)
		if err != nil {
			return err
		}
		r := &Runner{
			Session:   ed.Session(),
			Layer:     ed.Layer(),
			Stickers:  ed.Stickers(),
			Randomize: ed.Randomize,
		}
		if err := r.Run(cmds); err != nil {
			return err
		}
		klog.V(1).Infof("replayed %d commands, %d in history", len(cmds), ed.Session().History().Len())
	}

	out := opts.out
	if out == "" {
		out = ed.OutputPath()
	}
	written, err := ed.ExportScene(ctx, out)
	if err != nil {
		return err
	}
	if info, err := os.Stat(written); err == nil {
		klog.Infof("wrote %s (%s)", written, utils.FormatFileSize(info.Size()))
	}
	return nil
}

func writeDebug(ed *redactor.Editor) error {
	img, err := ed.DebugImage()
	if err != nil {
		return err
	}
	path := ed.OutputPath()
	path = path[:len(path)-len(filepath.Ext(path))] + "_faces.png"
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := processing.NewProcessor().SaveImage(img, path, "png", 0, false); err != nil {
		return err
	}
	klog.Infof("wrote %s", path)
	return nil
}

// watch re-runs the whole pipeline whenever the script file is saved, until
// ctx is cancelled
func watch(ctx context.Context, ed *redactor.Editor, opts options) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// editors replace files on save, so watch the directory
	script, err := filepath.Abs(opts.script)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(script)); err != nil {
		return err
	}
	klog.Infof("watching %s, Ctrl-C to stop", script)
	stickerChanged := watchStickers(ctx, ed.Stickers())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stickerChanged:
			if err := run(ctx, ed, opts); err != nil {
				klog.Errorf("%v", err)
			}
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != script {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := run(ctx, ed, opts); err != nil {
				klog.Errorf("%v", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Warningf("watcher: %v", err)
		}
	}
}

// watchStickers signals on the returned channel after every registry
// rebuild. Signals coalesce while a run is in progress. A registry without
// directories yields a channel that never fires.
func watchStickers(ctx context.Context, reg *stickers.Registry) <-chan struct{} {
	changed := make(chan struct{}, 1)
	err := reg.Watch(ctx, func(list []stickers.Sticker) {
		klog.Infof("stickers changed, %d image stickers", len(list))
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		klog.Warningf("not watching stickers: %v", err)
	}
	return changed
}
