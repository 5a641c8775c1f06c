package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ju4n97/neurocalc/internal/env"
	"github.com/ju4n97/neurocalc/internal/logger"
	"github.com/ju4n97/neurocalc/internal/model"
	"github.com/ju4n97/neurocalc/internal/tensor"
	"github.com/ju4n97/neurocalc/internal/xfs"
)

func main() {
	var (
		flagDir = flag.String("dir", "./models", "Directory to write model_<operation> artifacts into")
		flagOp  = flag.String("op", "", "Operation to export (add or subtract); all when empty")
	)
	flag.Parse()

	slog.SetDefault(logger.New(env.FromEnv()))

	ops := model.Operations()
	if *flagOp != "" {
		op, err := model.ParseOperation(*flagOp)
		if err != nil {
			slog.Error("Invalid operation", "operation", *flagOp, "error", err)
			os.Exit(1)
		}
		ops = []model.Operation{op}
	}

	mem := tensor.NewMemory()
	root := xfs.ExpandTilde(*flagDir)

	for _, op := range ops {
		m := model.Synthetic(mem, op)
		dir := filepath.Join(root, "model_"+op.String())

		err := model.WriteArtifact(dir, m)
		m.Dispose()
		if err != nil {
			slog.Error("Failed to export model", "operation", op, "dir", dir, "error", err)
			os.Exit(1)
		}

		slog.Info("Exported model", "operation", op, "dir", dir)
	}
}
