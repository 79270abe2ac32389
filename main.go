package main

import (
	"context"
	"os"

	"github.com/urfave/cli"

	defs "hostfs/definitions"
	er "hostfs/errors"
	log "hostfs/logger"
	"hostfs/pkg/configstack"
	"hostfs/pkg/hostfs"
	"hostfs/pkg/priv"
	"hostfs/pkg/tracer"
)

// Version is set with -ldflags "-X main.Version=...".
var Version = "dev"

const usage = `bind host file systems into a container root

hostfs reads the host mount table and binds every file system that is not
excluded by policy (/, /sys, /proc, /dev, /run, /var, the container root,
tmpfs and cgroup) onto the same path below the container root.`

func main() {
	app := cli.NewApp()
	app.Name = defs.ProgramName
	app.Usage = usage
	app.Version = Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rootfs",
			Usage: "absolute path of the container root file system",
		},
		cli.BoolFlag{
			Name:  "overlay",
			Usage: "an overlay is active on the container root; missing bind points are created",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "configuration file, overrides $" + defs.HostfsConfEnv + " and the default search",
		},
		cli.StringFlag{
			Name:  "mounts",
			Value: defs.ProcMounts,
			Usage: "mount table to read",
		},
		cli.StringFlag{
			Name:  "mount-hostfs",
			Usage: "override the 'mount hostfs' configuration (yes/no)",
		},
		cli.BoolFlag{
			Name:  "dry-run",
			Usage: "log the binds without mounting or changing privileges",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug output for logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		if er.IsFatal(err) {
			log.WithError(err).Error("aborting: container mount namespace may be inconsistent")
			os.Exit(defs.ExitFatal)
		}
		log.Error(err)
		os.Exit(defs.ExitFailure)
	}
}

func run(cliCtx *cli.Context) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}

	if err := log.Init(&log.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Debug:  cliCtx.Bool("debug"),
	}); err != nil {
		return er.Wrapf(er.ConfigInvalid, "logger: %v", err)
	}
	log.Debugf("configuration loaded from %v", cfg.Files)

	c, err := hostfs.NewContainerContext(cliCtx.String("rootfs"), cliCtx.Bool("overlay"), cfg.MountHostfs)
	if err != nil {
		return err
	}

	ctx := context.Background()
	shutdown, err := tracer.Setup(ctx, tracer.NewConfig(defs.ProgramName, cfg.OTLPEndpoint, cfg.OTLPInsecure))
	if err != nil {
		log.WithError(err).Warn("tracing disabled")
	}
	defer shutdown()

	runner := &hostfs.Runner{
		Context:   c,
		TablePath: cliCtx.String("mounts"),
	}
	if cliCtx.Bool("dry-run") {
		runner.Priv = &priv.Noop{}
		runner.Mounter = hostfs.NewLogMounter()
	} else {
		p, err := priv.Start()
		if err != nil {
			return err
		}
		runner.Priv = p
	}

	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	log.WithField("skipped", res.Skipped).Infof("bound %d host file systems into %s", len(res.Mounts), c.RootPath())
	return nil
}

func loadConfig(cliCtx *cli.Context) (configstack.Config, error) {
	var (
		cfg configstack.Config
		err error
	)
	if path := cliCtx.String("config"); path != "" {
		cfg, err = configstack.Load(path)
	} else {
		cfg, err = configstack.LoadDiscovered()
	}
	if err != nil {
		return cfg, err
	}

	if v := cliCtx.String("mount-hostfs"); v != "" {
		enabled, err := configstack.ParseBool(v)
		if err != nil {
			return cfg, er.Wrapf(er.ConfigInvalid, "--mount-hostfs: %v", err)
		}
		cfg.MountHostfs = enabled
	}
	return cfg, nil
}
