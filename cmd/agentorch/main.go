// =============================================================================
// AgentOrch 命令行入口
// =============================================================================
// 编排引擎本体是库；真实的模型执行器由宿主程序注入。CLI 提供配置校验、
// 试运行（内置回显执行器）与版本信息。
//
// 使用方法:
//
//	agentorch validate --config config.yaml   # 校验配置
//	agentorch dryrun --config config.yaml --domain support --task "..."
//	agentorch version                         # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/config"
	"github.com/BaSui01/agentorch/orchestrator"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		runValidate(os.Args[2:])
	case "dryrun":
		runDryRun(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// runValidate 加载配置并执行全部引用完整性检查
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	// The orchestrator performs the strategy-specific sizing checks the
	// file-level validation cannot.
	if _, err := orchestrator.New(orchestrator.Options{
		Agents:   cfg.Agents,
		Domains:  cfg.Domains,
		Executor: agent.ExecutorFunc(echoExecutor),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OK: %d agents, %d domains\n", len(cfg.Agents), len(cfg.Domains))
}

// runDryRun 用回显执行器跑一次编排，便于观察步骤轨迹
func runDryRun(args []string) {
	fs := flag.NewFlagSet("dryrun", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to config file")
	domainID := fs.String("domain", "", "Domain to execute")
	task := fs.String("task", "", "Task text")
	timeout := fs.Duration("timeout", 30*time.Second, "Overall run timeout")
	fs.Parse(args)

	if *domainID == "" || *task == "" {
		fmt.Fprintln(os.Stderr, "dryrun requires --domain and --task")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Logging.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	o, err := orchestrator.New(orchestrator.Options{
		Agents:   cfg.Agents,
		Domains:  cfg.Domains,
		Executor: agent.ExecutorFunc(echoExecutor),
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := o.Execute(ctx, *domainID, *task)
	if err != nil {
		logger.Warn("run failed", zap.Error(err))
	}
	if result == nil {
		os.Exit(1)
	}
	for _, step := range result.Steps {
		fmt.Printf("[%d] %-12s %-18s %s\n", step.Index, step.Status, step.AgentID, firstLine(step.Output))
	}
	fmt.Printf("termination: %s, final response: %s\n",
		result.Metadata.TerminationReason, firstLine(result.FinalResponse()))
}

// echoExecutor 回显执行器：原样返回提示词首行，供校验与试运行使用
func echoExecutor(_ context.Context, a agent.Agent, prompt string) (string, error) {
	return fmt.Sprintf("[%s] %s", a.ID, firstLine(prompt)), nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func printVersion() {
	fmt.Printf("AgentOrch %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
}

func printUsage() {
	fmt.Println(`AgentOrch - multi-agent orchestration engine

Usage:
  agentorch validate --config config.yaml
  agentorch dryrun   --config config.yaml --domain <id> --task "<text>"
  agentorch version`)
}
