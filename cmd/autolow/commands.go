package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/Faultbox/autolow/internal/config"
	"github.com/Faultbox/autolow/internal/logger"
	"github.com/Faultbox/autolow/internal/pipeline"
	"github.com/Faultbox/autolow/internal/queue"
	"github.com/Faultbox/autolow/internal/scene"
)

const defaultSession = "autolow-session.yaml"

func sessionFlag(fs *flag.FlagSet) *string {
	return fs.String("session", defaultSession, "Session file")
}

func openSession(path string) (*scene.Session, error) {
	sess, err := scene.OpenSession(path, logger.Named("scene"))
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	return sess, nil
}

func controllerFor(sess *scene.Session) *pipeline.Controller {
	return pipeline.NewController(sess.Scene, sess.Queue, sess.Settings, logger.Named("pipeline"))
}

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	session := sessionFlag(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: autolow import [-session file] <mesh.obj>...")
	}

	sess, err := openSession(*session)
	if err != nil {
		return err
	}
	for _, path := range fs.Args() {
		objects, err := sess.Scene.ImportOBJ(path)
		if err != nil {
			return err
		}
		for _, obj := range objects {
			m := obj.MeshData()
			fmt.Printf("  %s: %d vertices, %d polygons\n", obj.Name(), m.VertexCount(), m.PolygonCount())
		}
	}
	return sess.Scene.Save()
}

func cmdQueue(args []string) error {
	fs := flag.NewFlagSet("queue", flag.ExitOnError)
	session := sessionFlag(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: autolow queue [-session file] add|remove|up|down|list|select <name>")
	}

	sess, err := openSession(*session)
	if err != nil {
		return err
	}

	switch fs.Arg(0) {
	case "list", "ls":
		printQueue(sess)
		return nil
	case "select":
		if fs.NArg() < 2 {
			return fmt.Errorf("usage: autolow queue select <name>")
		}
		obj, ok := sess.Scene.Find(fs.Arg(1))
		if !ok {
			return fmt.Errorf("object %q not found", fs.Arg(1))
		}
		sess.Scene.SetActive(obj)
	default:
		action, err := queue.ParseAction(fs.Arg(0))
		if err != nil {
			return err
		}
		if err := controllerFor(sess).QueueAction(action); err != nil {
			return err
		}
		printQueue(sess)
	}
	return sess.Scene.Save()
}

func printQueue(sess *scene.Session) {
	items := sess.Queue.Items()
	if len(items) == 0 {
		fmt.Println("Queue is empty")
		return
	}
	for i, item := range items {
		marker := " "
		if i == sess.Queue.Index() {
			marker = ">"
		}
		fmt.Printf("%s %2d  %s\n", marker, i, item.Name)
	}
}

func cmdWorkflow(args []string) error {
	fs := flag.NewFlagSet("workflow", flag.ExitOnError)
	session := sessionFlag(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: autolow workflow [-session file] full|transfer|active|none")
	}
	w, err := config.ParseWorkflow(fs.Arg(0))
	if err != nil {
		return err
	}

	sess, err := openSession(*session)
	if err != nil {
		return err
	}
	if err := controllerFor(sess).SetWorkflowPreset(w); err != nil {
		return err
	}
	fmt.Printf("Remesher: %s, unwrap: %s, bake: %s\n",
		sess.Settings.Remesher, sess.Settings.UnwrapMethod, sess.Settings.BakeMethod)
	return sess.Scene.Save()
}

func cmdImagePath(args []string) error {
	fs := flag.NewFlagSet("image-path", flag.ExitOnError)
	session := sessionFlag(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: autolow image-path [-session file] <dir>")
	}

	sess, err := openSession(*session)
	if err != nil {
		return err
	}
	if err := controllerFor(sess).SetImagePath(fs.Arg(0)); err != nil {
		return err
	}
	return sess.Scene.Save()
}

func cmdStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	session := sessionFlag(fs)
	flags := config.RegisterFlags(fs)
	fs.Parse(args)

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	_, statErr := os.Stat(*session)
	fresh := errors.Is(statErr, os.ErrNotExist)

	sess, err := openSession(*session)
	if err != nil {
		return err
	}
	if fresh {
		// A new session starts from the loaded config, flags included.
		*sess.Settings = cfg.Pipeline
	} else if err := flags.ApplyPipeline(sess.Settings); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report := controllerFor(sess).Start(ctx)
	for _, w := range report.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	for _, o := range report.Objects {
		if o.Err != nil {
			fmt.Printf("  %s: %v\n", o.Source, o.Err)
			continue
		}
		fmt.Printf("  %s -> %s\n", o.Source, o.LowPoly)
		for _, img := range o.Images {
			fmt.Printf("      %s\n", img)
		}
	}
	fmt.Println(report.Summary())

	if err := sess.Scene.Save(); err != nil {
		logger.Error("session not saved", zap.Error(err))
		return err
	}
	if report.State == pipeline.StateFailed {
		return report.Err
	}
	return nil
}

func cmdConfig(args []string) error {
	if len(args) < 1 || args[0] != "init" {
		return fmt.Errorf("usage: autolow config init [path]")
	}
	cfg := config.Default()
	if len(args) < 2 {
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println("Config written to", config.ConfigDir())
		return nil
	}
	if err := cfg.SaveTo(args[1]); err != nil {
		return err
	}
	fmt.Println("Config written to", args[1])
	return nil
}
