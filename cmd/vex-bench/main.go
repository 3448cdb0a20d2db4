// Copyright 2025 vexdb, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// vex-bench runs a synthetic multi-lane nested-loop join pipeline and
// reports throughput. It doubles as a smoke test of the pipeline driver and
// the NLJ probe operator under concurrency.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vexdb/vex/pkg/config"
	"github.com/vexdb/vex/pkg/executor/join"
	"github.com/vexdb/vex/pkg/executor/pipeline"
	"github.com/vexdb/vex/pkg/expression"
	"github.com/vexdb/vex/pkg/metrics"
	"github.com/vexdb/vex/pkg/types"
	"github.com/vexdb/vex/pkg/util/chunk"
	"github.com/vexdb/vex/pkg/util/logutil"
	"go.uber.org/zap"
)

var (
	configPath  = flag.String("config", "", "config file path")
	numLanes    = flag.Int("lanes", 4, "number of probe lanes")
	probeRows   = flag.Int("probe-rows", 4096, "total probe side rows")
	buildRows   = flag.Int("build-rows", 2048, "total build side rows")
	joinTypeStr = flag.String("join-type", "inner", "inner | cross | left_outer | right_outer | full_outer")
	metricsAddr = flag.String("metrics-addr", "", "address to serve /metrics on, empty to disable")
)

func main() {
	flag.Parse()

	cfg := config.NewConfig()
	if *configPath != "" {
		if err := cfg.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "load config failed:", err)
			os.Exit(1)
		}
	}
	if err := cfg.Valid(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}
	if err := logutil.InitLogger(cfg.ToLogConfig()); err != nil {
		fmt.Fprintln(os.Stderr, "init logger failed:", err)
		os.Exit(1)
	}
	metrics.RegisterMetrics()
	if *metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				logutil.BgLogger().Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	joinType, err := parseJoinType(*joinTypeStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	state := pipeline.NewRuntimeState(cfg.Performance.MaxChunkSize)
	joinCtx := join.NewNLJoinContext(1, *numLanes)

	probeTypes := []*types.FieldType{
		types.NewFieldType(types.KindInt64),
		types.NewFieldType(types.KindInt64),
	}
	buildTypes := []*types.FieldType{
		types.NewFieldType(types.KindInt64),
		types.NewFieldType(types.KindString),
	}
	colTypes := append(append([]*types.FieldType{}, probeTypes...), buildTypes...)

	// Non-equi conjunct: probe id strictly less than build id.
	joinConjuncts := expression.CNFExprs{
		expression.NewCmpFunction(expression.OpLT,
			expression.NewColumn(0, types.KindInt64),
			expression.NewColumn(2, types.KindInt64)),
	}

	probeChunksByLane := generateProbeChunks(probeTypes, *probeRows, *numLanes, cfg.Performance.MaxChunkSize)
	buildChunks := generateBuildChunks(buildTypes, *buildRows, cfg.Performance.MaxChunkSize)

	sinks := make([]*pipeline.CollectSink, *numLanes)
	start := time.Now()
	err = pipeline.RunLanes(context.Background(), state, *numLanes+1, func(lane int) []pipeline.Operator {
		if lane == 0 {
			return []pipeline.Operator{
				pipeline.NewBufferSource(lane, buildChunks),
				join.NewNLJoinBuildSinkOperator(lane, joinCtx),
			}
		}
		probeLane := lane - 1
		sinks[probeLane] = pipeline.NewCollectSink(probeLane)
		return []pipeline.Operator{
			pipeline.NewBufferSource(probeLane, probeChunksByLane[probeLane]),
			join.NewNLJoinProbeOperator(probeLane, joinType, joinConjuncts, nil,
				colTypes, len(probeTypes), len(buildTypes), joinCtx),
			sinks[probeLane],
		}
	})
	if err != nil {
		logutil.BgLogger().Fatal("pipeline failed", zap.Error(err))
	}
	elapsed := time.Since(start)

	totalRows := 0
	for _, sink := range sinks {
		totalRows += sink.NumResultRows()
	}
	logutil.BgLogger().Info("nested-loop join bench finished",
		zap.String("joinType", joinType.String()),
		zap.Int("lanes", *numLanes),
		zap.Int("probeRows", *probeRows),
		zap.Int("buildRows", *buildRows),
		zap.Int("outputRows", totalRows),
		zap.Duration("elapsed", elapsed),
		zap.Int64("peakMemBytes", state.MemTracker().MaxConsumed()))
}

func parseJoinType(s string) (join.JoinType, error) {
	for _, t := range []join.JoinType{join.InnerJoin, join.CrossJoin, join.LeftOuterJoin, join.RightOuterJoin, join.FullOuterJoin} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown join type %q", s)
}

func generateProbeChunks(fields []*types.FieldType, totalRows, lanes, chunkSize int) [][]*chunk.Chunk {
	byLane := make([][]*chunk.Chunk, lanes)
	rowsPerLane := (totalRows + lanes - 1) / lanes
	next := int64(0)
	for lane := 0; lane < lanes; lane++ {
		remaining := rowsPerLane
		if rest := totalRows - lane*rowsPerLane; rest < remaining {
			remaining = rest
		}
		for remaining > 0 {
			n := remaining
			if n > chunkSize {
				n = chunkSize
			}
			chk := chunk.NewChunkWithCapacity(fields, n)
			for i := 0; i < n; i++ {
				chk.Column(0).AppendInt64(next)
				chk.Column(1).AppendInt64(next * 7 % 97)
				next++
			}
			byLane[lane] = append(byLane[lane], chk)
			remaining -= n
		}
	}
	return byLane
}

func generateBuildChunks(fields []*types.FieldType, totalRows, chunkSize int) []*chunk.Chunk {
	var chunks []*chunk.Chunk
	for produced := 0; produced < totalRows; {
		n := totalRows - produced
		if n > chunkSize {
			n = chunkSize
		}
		chk := chunk.NewChunkWithCapacity(fields, n)
		for i := 0; i < n; i++ {
			id := int64(produced + i)
			chk.Column(0).AppendInt64(id)
			chk.Column(1).AppendString(fmt.Sprintf("tag-%d", id%13))
		}
		chunks = append(chunks, chk)
		produced += n
	}
	return chunks
}
