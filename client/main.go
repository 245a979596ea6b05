package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	restapi "github.com/hedisam/tmpdrop/client/api/rest"
	"github.com/hedisam/tmpdrop/client/filesystem"
	"github.com/hedisam/tmpdrop/client/filesystem/watch"
	"github.com/hedisam/tmpdrop/lib/chans"
)

type Options struct {
	ServerAddr string
	Disposable bool
	WatchDir   string
	Verbose    bool
}

func main() {
	logger := logrus.New()

	var opts Options
	pflag.StringVarP(&opts.ServerAddr, "server", "s", "http://localhost", "Server address to upload to.")
	pflag.BoolVarP(&opts.Disposable, "disposable", "d", false, "Delete every uploaded file after its first download.")
	pflag.StringVarP(&opts.WatchDir, "watch", "w", "", "Upload every file created in this directory until interrupted.")
	pflag.BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose output")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [files or directories...]\n", filepath.Base(os.Args[0]))
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if pflag.NArg() == 0 && opts.WatchDir == "" {
		pflag.Usage()
		os.Exit(1)
	}

	restClient, err := restapi.NewClient(logger, opts.ServerAddr)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create rest client")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	up := &uploader{
		logger:     logger,
		client:     restClient,
		disposable: opts.Disposable,
	}

	for _, arg := range pflag.Args() {
		info, err := os.Stat(arg)
		if err != nil {
			logger.WithError(err).WithField("path", arg).Error("Cannot upload path")
			up.failed++
			continue
		}
		if info.IsDir() {
			err = filesystem.Walk(ctx, logger, arg, nil, up)
		} else {
			err = up.Enqueue(ctx, arg)
		}
		if err != nil {
			logger.WithError(err).WithField("path", arg).Error("Upload stopped")
			break
		}
	}

	if opts.WatchDir != "" && ctx.Err() == nil {
		watchAndUpload(ctx, logger, opts.WatchDir, up)
	}

	if up.failed > 0 {
		os.Exit(1)
	}
}

func watchAndUpload(ctx context.Context, logger *logrus.Logger, dir string, up *uploader) {
	watcher, err := watch.New(logger, watch.DefaultSettleDelay)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize file watcher")
	}
	defer watcher.Close()

	// register the whole tree; files that already exist are not uploaded
	err = filesystem.Walk(ctx, logger, dir, watcher, nil)
	if err != nil {
		logger.WithError(err).Fatal("Failed to watch directory")
	}
	go watcher.Start(ctx)

	logger.WithField("dir", dir).Info("Watching for new files, press Ctrl+C to stop")
	for path := range chans.ReceiveOrDoneSeq(ctx, watcher.Files()) {
		if err := up.Enqueue(ctx, path); err != nil {
			logger.WithError(err).Error("Upload stopped")
			return
		}
	}
}

// uploader uploads files one at a time and prints the URL of each one to stdout. Files that fail
// to upload are logged and counted, not fatal.
type uploader struct {
	logger     *logrus.Logger
	client     *restapi.Client
	disposable bool
	failed     int
}

func (u *uploader) Enqueue(ctx context.Context, path string) error {
	logger := u.logger.WithField("path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithError(err).Error("Failed to read file")
		u.failed++
		return ctx.Err()
	}

	fileURL, err := u.client.Upload(ctx, filepath.Base(path), data, u.disposable)
	if err != nil {
		logger.WithError(err).Error("Failed to upload file")
		u.failed++
		return ctx.Err()
	}

	logger.WithField("size", units.HumanSize(float64(len(data)))).Debug("File uploaded")
	fmt.Printf("%s\t%s\t%s\n", fileURL, units.HumanSize(float64(len(data))), path)
	return nil
}
