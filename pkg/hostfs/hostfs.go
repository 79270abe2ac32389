// Package hostfs exposes host file systems inside a container root.
//
// The host mount table is read line by line. Each line is parsed, filtered
// through the fixed exclusion policy, given a bind point inside the container
// root and then bind mounted with privilege held. Lines are handled strictly
// in table order. Running twice against the same root binds everything
// again; nothing is deduplicated.
package hostfs

import (
	"context"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	defs "hostfs/definitions"
	er "hostfs/errors"
	log "hostfs/logger"
	"hostfs/pkg/mounttable"
	"hostfs/pkg/policy"
	"hostfs/pkg/priv"
)

const (
	SkipMissingBindPoint = "missing_bind_point"
	SkipMkdirFailed      = "mkdir_failed"
)

const tracerName = "hostfs"

// Result summarizes a completed run.
type Result struct {
	// Mounts lists the binds performed, in order.
	Mounts []specs.Mount
	// Skipped counts dropped entries by reason.
	Skipped map[string]int
	// Lines is the number of mount table lines read.
	Lines int
}

func newResult() *Result {
	return &Result{Skipped: make(map[string]int)}
}

func (r *Result) skip(reason string) {
	r.Skipped[reason]++
}

// Runner drives one mount-hostfs pass. Zero valued collaborators are
// replaced with the ones acting on the running system.
type Runner struct {
	Context ContainerContext
	// TablePath defaults to /proc/mounts.
	TablePath string
	Priv      priv.Controller
	Mounter   Mounter
	FS        FS
}

// Run binds host file systems into the container described by c using the
// privilege controller p.
func Run(ctx context.Context, c ContainerContext, p priv.Controller) (*Result, error) {
	r := &Runner{Context: c, Priv: p}
	return r.Run(ctx)
}

func (r *Runner) setDefaults() {
	if r.TablePath == "" {
		r.TablePath = defs.ProcMounts
	}
	if r.Priv == nil {
		r.Priv = priv.NewEUIDController()
	}
	if r.Mounter == nil {
		r.Mounter = NewBindMounter()
	}
	if r.FS == nil {
		r.FS = HostFS()
	}
}

// Run processes the mount table. It returns a setup error when the table
// can't be read and a *errors.FatalError when a bind mount fails; the
// latter leaves the container in an unknown state and must end the
// operation.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := newResult()
	if !r.Context.HostfsEnabled() {
		log.Debugf("Not mounting host file systems per configuration")
		return res, nil
	}
	r.setDefaults()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "hostfs.Run", trace.WithAttributes(
		attribute.String("hostfs.root", r.Context.RootPath()),
		attribute.Bool("hostfs.overlay", r.Context.OverlayEnabled()),
	))
	defer span.End()

	table, err := mounttable.Open(r.TablePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mount table unavailable")
		return res, err
	}
	defer table.Close()

	log.Debugf("Getting line by line")
	for table.Next() {
		res.Lines++
		if err := r.processLine(ctx, table.Line(), res); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bind mount failed")
			return res, err
		}
	}
	if err := table.Err(); err != nil {
		log.WithError(err).Errorf("Stopped reading %s", r.TablePath)
		span.RecordError(err)
		span.SetStatus(codes.Error, "mount table read failed")
		return res, err
	}

	span.SetAttributes(attribute.Int("hostfs.mounts", len(res.Mounts)))
	log.Pretty("hostfs result: %v", res)
	return res, nil
}

// processLine drives one line to a terminal state. Only fatal errors are
// returned; every other outcome is recorded in res.
func (r *Runner) processLine(ctx context.Context, line string, res *Result) error {
	entry, reason := mounttable.Parse(line)
	switch reason {
	case mounttable.SkipNone:
	case mounttable.SkipBlankOrComment:
		log.Tracef("Skipping blank or comment line in %s", r.TablePath)
		res.skip(string(reason))
		return nil
	default:
		log.Tracef("Could not obtain source, mount point and file system from %s: %q", r.TablePath, line)
		res.skip(string(reason))
		return nil
	}

	fields := logrus.Fields{
		"source":     entry.Source,
		"mountpoint": entry.Mountpoint,
		"filesystem": entry.Filesystem,
	}

	d := policy.Evaluate(entry, r.Context.RootPath())
	if !d.Keep {
		log.WithFields(fields).WithField("rule", d.Reason).Debugf("Skipping host file system")
		res.skip(d.Reason)
		return nil
	}

	target, skipReason, err := r.resolveTarget(entry)
	if err != nil {
		return err
	}
	if skipReason != "" {
		res.skip(skipReason)
		return nil
	}

	if err := r.bind(ctx, entry, target); err != nil {
		return err
	}
	res.Mounts = append(res.Mounts, specs.Mount{
		Destination: target,
		Type:        "bind",
		Source:      entry.Mountpoint,
		Options:     append([]string(nil), BindOptions...),
	})
	return nil
}

// resolveTarget makes sure the bind point for e exists in the container
// root. A non-empty reason means e is skipped.
func (r *Runner) resolveTarget(e mounttable.Entry) (target, reason string, err error) {
	target = r.Context.Target(e.Mountpoint)

	if r.FS.IsDir(e.Mountpoint) && !r.FS.IsDir(target) {
		if !r.Context.OverlayEnabled() {
			log.Warnf("Non existent 'bind point' directory in container: '%s'", e.Mountpoint)
			return target, SkipMissingBindPoint, nil
		}

		err := priv.With(r.Priv, func() error {
			return r.FS.MkdirAll(target, defs.BindPointMode)
		})
		if err != nil {
			if er.Is(err, priv.ErrDropFailed) {
				return target, "", &er.FatalError{Source: e.Mountpoint, Target: target, Err: err}
			}
			log.Warnf("Could not create bind point directory in container %s: %v", e.Mountpoint, err)
			return target, SkipMkdirFailed, nil
		}
	}

	if mounted, err := r.FS.IsMountPoint(target); err == nil && mounted {
		log.Debugf("%s is already a mount point, binding again", target)
	}
	return target, "", nil
}

func (r *Runner) bind(ctx context.Context, e mounttable.Entry, target string) error {
	log.Infof("Binding '%s'(%s) to '%s'", e.Mountpoint, e.Filesystem, target)
	err := priv.With(r.Priv, func() error {
		return r.Mounter.BindMount(e.Mountpoint, target)
	})
	if err != nil {
		log.WithError(err).Errorf("There was an error binding the path %s", e.Mountpoint)
		return &er.FatalError{Source: e.Mountpoint, Target: target, Err: err}
	}

	trace.SpanFromContext(ctx).AddEvent("bind", trace.WithAttributes(
		attribute.String("source", e.Mountpoint),
		attribute.String("target", target),
		attribute.String("filesystem", e.Filesystem),
	))
	return nil
}
