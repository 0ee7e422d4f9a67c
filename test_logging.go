//go:build ignore
// +build ignore

package main

import (
	"ExitLane/internal/conf"
	pkglog "ExitLane/pkg/log"
)

func main() {
	// 创建日志配置
	logConf := &conf.Log{
		Level:  "debug",
		Format: "console", // 使用 console 格式以启用 Emoji Encoder
		Env:    "development",
	}

	// 创建 Zap logger
	zapLogger, err := pkglog.NewZapLogger(logConf)
	if err != nil {
		panic(err)
	}

	// 创建 Kratos adapter
	kratosLogger := pkglog.NewKratosAdapter(zapLogger)

	// 创建 LogHelper
	helper := pkglog.NewLogHelper(kratosLogger)

	// 测试各种日志类型
	println("=== 测试日志输出格式 ===\n")

	helper.Startup("ExitLane service starting", "version", "1.0.0", "port", 8080)
	helper.API("Processing API request", "endpoint", "/v1/interviews/iv-1/turns", "method", "POST")
	helper.Auth("Request authenticated successfully", "api_key_masked", "sk-12345***", "duration_ms", 2)
	helper.Request("POST", "/v1/interviews/iv-1/turns", 200, 542, "ip", "192.168.1.100", "request_id", "mgrn0zfqda")
	helper.Database("Query executed successfully", "table", "interview_turns", "duration_ms", 5)
	helper.Redis("Cache hit", "key", "state:iv-1", "ttl", 600)
	helper.LLM("Upstream call completed", "provider", "openai", "model", "gpt-4o-mini", "duration_ms", 480)
	helper.Breaker("Circuit opened after repeated failures", "failure_count", 5)
	helper.Cache("Response cache sweep completed", "removed", 12)
	helper.Interview("Follow-up issued", "interview_id", "iv-1", "question_id", 1, "follow_ups_used", 1)
	helper.Scheduler("Stale interviews marked abandoned", "count", 3)
	helper.Success("Turn processed successfully", "interview_id", "iv-1")
	helper.SlowRequest("[mgrn0zfqda] Slow request detected", "path", "/v1/interviews/iv-1/turns", "duration_ms", 18438)

	println("\n=== 日志输出完成 ===")
}
