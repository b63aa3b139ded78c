// Command derive materializes one derived image and writes its bytes.
//
//	derive --url 'x-media-transformed-image:///file%3A///cat.jpg?mimetype=image%2Fpng&width=64&height=64'
//	derive --data-dir ./photos --mimetype image/webp --width 320 --height 240 --out cat.webp cat.jpg
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/fs/billy"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"mediavfs/internal/app"
	"mediavfs/internal/config"
	"mediavfs/internal/derived"
	"mediavfs/internal/errcode"
	"mediavfs/internal/logger"
	"mediavfs/internal/mimetype"
	"mediavfs/internal/transformation"
	"mediavfs/internal/transformer"
	"mediavfs/internal/transformer/libvips"
	"mediavfs/internal/vfs"
)

// engineFunc starts an image engine and returns its factory builder and a
// release function.
type engineFunc func(cfg *config.Config, log *zap.Logger) (app.TransformerFactory, func())

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, vipsEngine); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func vipsEngine(cfg *config.Config, log *zap.Logger) (app.TransformerFactory, func()) {
	libvips.Startup(libvips.RuntimeConfig{MaxCacheMB: cfg.VipsMaxCacheMB, Concurrency: cfg.VipsConcurrency}, log)
	return func(sources vfs.Resolver, types mimetype.Registry) transformer.Factory {
		return libvips.NewFactory(sources, types, cfg.EncodeQuality, log)
	}, libvips.Shutdown
}

type options struct {
	url      string
	mimetype string
	width    int
	height   int
	depth    int
	mode     resizeModeFlag
	out      string
	info     bool
}

func run(args []string, stdout, stderr io.Writer, engine engineFunc) error {
	cfg := config.Load()
	opts := options{mode: resizeModeFlag(transformation.ResizeScaledFit)}

	flags := pflag.NewFlagSet("derive", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.url, "url", "", "derived URL to materialize")
	flags.StringVar(&opts.mimetype, "mimetype", "", "target mimetype when a source path is given")
	flags.IntVar(&opts.width, "width", 0, "target width in pixels")
	flags.IntVar(&opts.height, "height", 0, "target height in pixels")
	flags.IntVar(&opts.depth, "depth", transformation.DefaultDepth, "target color depth in bits")
	flags.Var(&opts.mode, "resize-mode", "resize mode (scaled-fit, scaled-crop, stretch)")
	flags.StringVarP(&opts.out, "out", "o", "", "output file (default stdout)")
	flags.BoolVar(&opts.info, "info", false, "print metadata as JSON instead of the image bytes")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory served as file:///")
	flags.StringVar(&cfg.CacheType, "cache", cfg.CacheType, "cache type (memory, file, disabled)")
	flags.StringVar(&cfg.CacheFileDir, "cache-dir", cfg.CacheFileDir, "cache directory for the file cache")
	flags.StringVar(&cfg.LogLevel, "log-level", "warn", "log level")
	if err := flags.Parse(args); err != nil {
		return err
	}

	log, err := logger.NewConsole(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	newTransformers, release := engine(cfg, log)
	defer release()

	a, err := app.Build(cfg, newTransformers, log)
	if err != nil {
		return err
	}

	url, err := opts.derivedURL(flags.Args(), a.Types)
	if err != nil {
		return err
	}

	obj := derived.New(a.Deps)
	if err := obj.Open(url); err != nil {
		return err
	}
	defer obj.Close()

	if err := obj.Materialize(); err != nil {
		return err
	}

	identity, err := obj.URL()
	if err != nil {
		return err
	}
	fmt.Fprintln(stderr, identity)

	if opts.info {
		return writeInfo(stdout, obj)
	}

	if opts.out == "" {
		_, err := io.Copy(stdout, obj)
		return err
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(opts.out)
	if err != nil {
		return err
	}
	return billy.NewLocal().WriteFile(out, data, 0o644)
}

// derivedURL returns --url, or builds one from a source path and the
// transformation flags.
func (o *options) derivedURL(args []string, types mimetype.Registry) (string, error) {
	if o.url != "" {
		if len(args) > 0 {
			return "", errors.New(errcode.InvalidArgument, "--url and a source path are exclusive")
		}
		return o.url, nil
	}
	if len(args) != 1 {
		return "", errors.New(errcode.InvalidArgument, "expected --url or exactly one source path")
	}

	spec, err := transformation.Parse(map[string]string{
		transformation.KeyMimetype:   o.mimetype,
		transformation.KeyWidth:      strconv.Itoa(o.width),
		transformation.KeyHeight:     strconv.Itoa(o.height),
		transformation.KeyDepth:      strconv.Itoa(o.depth),
		transformation.KeyResizeMode: strconv.Itoa(int(o.mode)),
	}, types)
	if err != nil {
		return "", err
	}
	return derived.BuildURL(vfs.FileURL(args[0]), spec), nil
}

func writeInfo(w io.Writer, obj *derived.Object) error {
	name, err := obj.Name()
	if err != nil {
		return err
	}
	size, err := obj.Size()
	if err != nil {
		return err
	}
	dgst, err := obj.Digest()
	if err != nil {
		return err
	}
	updated, err := obj.TimeUpdated()
	if err != nil {
		return err
	}
	url, err := obj.URL()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"url":          url,
		"source":       obj.SourceURL(),
		"name":         name,
		"mimetype":     obj.Mimetype(),
		"size":         size,
		"digest":       dgst.String(),
		"time_updated": updated,
	})
}

// resizeModeFlag is a pflag.Value accepting a mode name or number.
type resizeModeFlag transformation.ResizeMode

func (f *resizeModeFlag) Type() string { return "mode" }

func (f *resizeModeFlag) String() string { return transformation.ResizeMode(*f).String() }

func (f *resizeModeFlag) Set(value string) error {
	for _, mode := range []transformation.ResizeMode{
		transformation.ResizeScaledFit,
		transformation.ResizeScaledCrop,
		transformation.ResizeStretch,
	} {
		if value == mode.String() || value == strconv.Itoa(int(mode)) {
			*f = resizeModeFlag(mode)
			return nil
		}
	}
	return fmt.Errorf("expected one of scaled-fit, scaled-crop, stretch")
}
