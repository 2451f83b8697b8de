package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"clipshare/config"
	"clipshare/models"
	"clipshare/service"

	"github.com/maruel/subcommands"
)

var cmdNew = &subcommands.Command{
	UsageLine: "new [flags] <content...>",
	ShortDesc: "creates a clip and prints its short code",
	LongDesc:  "Creates a clip from the arguments, or from stdin when the only argument is \"-\".",
	CommandRun: func() subcommands.CommandRun {
		c := &newRun{}
		c.Flags.StringVar(&c.title, "title", "", "clip title")
		c.Flags.DurationVar(&c.expiresIn, "expires-in", 0, "delete the clip after this long, e.g. 24h")
		c.Flags.StringVar(&c.password, "password", "", "password needed to view the clip (at least 8 characters)")
		return c
	},
}

type newRun struct {
	baseRun
	title     string
	expiresIn time.Duration
	password  string
}

func (c *newRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	content, err := readContent(args, os.Stdin)
	if err != nil {
		return c.report(a, err)
	}
	req := service.NewClip{Content: content, Title: c.title, Password: c.password}
	if c.expiresIn > 0 {
		expires := time.Now().Add(c.expiresIn)
		req.Expires = &expires
	}
	clip, err := createClip(context.Background(), config.FromEnv(), req)
	if err != nil {
		return c.report(a, err)
	}
	fmt.Fprintln(a.GetOut(), clip.ShortCode)
	return 0
}

var cmdGet = &subcommands.Command{
	UsageLine: "get [flags] <shortcode>",
	ShortDesc: "prints a clip and counts the view",
	CommandRun: func() subcommands.CommandRun {
		c := &getRun{}
		c.Flags.StringVar(&c.password, "password", "", "clip password")
		return c
	},
}

type getRun struct {
	baseRun
	password string
}

func (c *getRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	if len(args) != 1 {
		return c.report(a, errors.New("expected exactly one short code"))
	}
	clip, err := viewClip(context.Background(), config.FromEnv(), service.GetClip{
		ShortCode: models.ShortCode(args[0]),
		Password:  c.password,
	})
	if err != nil {
		return c.report(a, err)
	}
	if clip.Title != nil {
		fmt.Fprintf(a.GetOut(), "# %s\n", *clip.Title)
	}
	fmt.Fprintln(a.GetOut(), clip.Content)
	return 0
}

var cmdHits = &subcommands.Command{
	UsageLine: "hits [flags] <shortcode>",
	ShortDesc: "records views of a clip without reading it",
	LongDesc:  "Publishes clip_viewed events when REDIS_URL is set, otherwise writes the views directly.",
	CommandRun: func() subcommands.CommandRun {
		c := &hitsRun{}
		c.Flags.IntVar(&c.count, "n", 1, "number of views to record")
		return c
	},
}

type hitsRun struct {
	baseRun
	count int
}

func (c *hitsRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	if len(args) != 1 {
		return c.report(a, errors.New("expected exactly one short code"))
	}
	if c.count < 1 {
		return c.report(a, fmt.Errorf("-n must be positive, got %d", c.count))
	}
	return c.report(a, sendHits(context.Background(), config.FromEnv(), models.ShortCode(args[0]), c.count))
}

func readContent(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}

func createClip(ctx context.Context, cfg config.Config, req service.NewClip) (clip *models.Clip, err error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, b.close()) }()
	svc, err := b.clipService()
	if err != nil {
		return nil, err
	}
	return svc.New(ctx, req)
}

func viewClip(ctx context.Context, cfg config.Config, req service.GetClip) (clip *models.Clip, err error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, b.close()) }()
	svc, err := b.clipService()
	if err != nil {
		return nil, err
	}
	return svc.Get(ctx, req)
}

func sendHits(ctx context.Context, cfg config.Config, code models.ShortCode, n int) (err error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, b.close()) }()

	if b.publisher != nil {
		for i := 0; i < n; i++ {
			if err := b.publisher.Publish(ctx, code); err != nil {
				return fmt.Errorf("publish view %d of %d: %w", i+1, n, err)
			}
		}
		return nil
	}
	if int64(n) > math.MaxUint32 {
		return fmt.Errorf("too many views: %d", n)
	}
	if _, err := b.store.Get(ctx, code); err != nil {
		return err
	}
	b.local.RecordHits(code, uint32(n))
	return nil
}
