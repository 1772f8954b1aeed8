// Package dsl 是在线召回的开关表达式解释器，使用 CEL (Common Expression Language) 实现。
//
// 表达式可以读取 rctx 变量：
//
//	rctx.user_id / rctx.scene / rctx.k / rctx.params
//
// 示例：
//   - `rctx.scene != "cold_start"`               → 冷启动场景不走在线召回
//   - `rctx.k <= 50`                              → 大页请求只用离线结果
//   - `"device" in rctx.params && rctx.params.device == "app"`
//
// 空表达式恒为 true。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/recserve/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Eval 是编译好的开关表达式。编译在 Compile 时完成一次，Evaluate 可并发调用。
type Eval struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式。表达式必须返回 bool，否则返回错误。
func Compile(expr string) (*Eval, error) {
	if expr == "" {
		return &Eval{}, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %v", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Eval{expr: expr, prg: prg}, nil
}

// String 返回原始表达式。
func (e *Eval) String() string { return e.expr }

// Evaluate 对 rctx 求值。
// 访问不存在的 params key 会返回错误，应先用 `"key" in rctx.params` 判断。
func (e *Eval) Evaluate(rctx *core.RecommendContext) (bool, error) {
	if e == nil || e.prg == nil {
		return true, nil
	}

	out, _, err := e.prg.Eval(map[string]any{"rctx": buildInput(rctx)})
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", e.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", e.expr, out.Value())
	}
	return result, nil
}

func buildInput(rctx *core.RecommendContext) map[string]any {
	if rctx == nil {
		return map[string]any{"user_id": "", "scene": "", "k": 0, "params": map[string]any{}}
	}
	params := rctx.Params
	if params == nil {
		params = map[string]any{}
	}
	return map[string]any{
		"user_id": rctx.UserID,
		"scene":   rctx.Scene,
		"k":       rctx.K,
		"params":  params,
	}
}
