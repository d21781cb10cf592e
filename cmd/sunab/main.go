package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go-sunab/internal/model"
	"go-sunab/internal/pipeline"
	"go-sunab/internal/store"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

func main() {
	jobFile := flag.String("job", "", "path to an estimation job spec (JSON)")
	dbPath := flag.String("db", "sunab.db", "path to the sqlite job database")
	flag.Parse()

	if *jobFile == "" {
		fmt.Fprintln(os.Stderr, "usage: sunab -job job.json [-db sunab.db]")
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	data, err := os.ReadFile(*jobFile)
	if err != nil {
		logger.Fatal("Failed to read job spec", zap.Error(err))
	}
	var spec model.EstimationJobSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		logger.Fatal("Failed to parse job spec", zap.Error(err))
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close()

	jobID := uuid.New().String()
	if err := st.SaveJob(jobID, spec); err != nil {
		logger.Fatal("Failed to save job", zap.Error(err))
	}

	bar := progressbar.NewOptions(len(pipeline.Stages),
		progressbar.OptionSetDescription("estimating"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
	)

	runner := pipeline.NewRunner(st, logger)
	err = runner.Run(context.Background(), jobID, spec, func(stage string) {
		bar.Describe(stage)
		bar.Add(1)
	})
	fmt.Println()
	if err != nil {
		logger.Fatal("Job failed", zap.String("jobId", jobID), zap.Error(err))
	}

	res, err := st.GetResult(jobID)
	if err != nil {
		logger.Fatal("Failed to load result", zap.String("jobId", jobID), zap.Error(err))
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
}
