package multiagent

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// inferenceEnv is the expr evaluation environment for execution
// expectation inference: the lower-cased worker instruction plus the
// worker's declared tool ids.
type inferenceEnv struct {
	Instruction string
	ToolIDs     []string
}

// HasToolPrefix reports whether any declared tool id begins with one
// of the given prefixes.
func (e inferenceEnv) HasToolPrefix(prefixes ...string) bool {
	for _, id := range e.ToolIDs {
		for _, p := range prefixes {
			if strings.HasPrefix(id, p) {
				return true
			}
		}
	}
	return false
}

// HasTool reports whether the exact tool id is declared.
func (e inferenceEnv) HasTool(id string) bool {
	for _, t := range e.ToolIDs {
		if t == id {
			return true
		}
	}
	return false
}

const (
	fileEffectsRule = `HasToolPrefix("fs_", "write_file") and (contains(Instruction, "write") or contains(Instruction, "create") or contains(Instruction, "save") or contains(Instruction, "generate code") or contains(Instruction, "implement") or contains(Instruction, "edit"))`

	shellEffectsRule = `(HasToolPrefix("shell_") or HasTool("shell_execute")) and (contains(Instruction, "run") or contains(Instruction, "build") or contains(Instruction, "test") or contains(Instruction, "execute") or contains(Instruction, "install"))`

	readIntentRule = `(HasToolPrefix("fs_read", "read_file") or HasTool("web_search")) and (contains(Instruction, "read") or contains(Instruction, "research") or contains(Instruction, "look up") or contains(Instruction, "find") or contains(Instruction, "search"))`
)

var (
	fileEffectsProgram  = compileInferenceRule(fileEffectsRule)
	shellEffectsProgram = compileInferenceRule(shellEffectsRule)
	readIntentProgram   = compileInferenceRule(readIntentRule)
)

func compileInferenceRule(src string) *vm.Program {
	program, err := expr.Compile(src, expr.Env(inferenceEnv{}), expr.AsBool())
	if err != nil {
		panic("multiagent: invalid execution expectation rule: " + err.Error())
	}
	return program
}

// executionExpectation is what the director's instruction plus the
// worker's tool roster imply the worker must actually do via tool
// calls, not just describe in prose.
type executionExpectation struct {
	RequiresFileEffects    bool
	RequiresShellEffects   bool
	RequiresToolExecution  bool
}

// inferExecutionExpectations evaluates the three expr rules against the
// instruction text and the worker's declared tool ids.
func inferExecutionExpectations(instruction string, toolIDs []string) executionExpectation {
	env := inferenceEnv{Instruction: strings.ToLower(instruction), ToolIDs: toolIDs}

	fileEffects := runInferenceRule(fileEffectsProgram, env)
	shellEffects := runInferenceRule(shellEffectsProgram, env)
	readIntent := runInferenceRule(readIntentProgram, env)

	return executionExpectation{
		RequiresFileEffects:   fileEffects,
		RequiresShellEffects:  shellEffects,
		RequiresToolExecution: fileEffects || shellEffects || readIntent,
	}
}

func runInferenceRule(program *vm.Program, env inferenceEnv) bool {
	out, err := expr.Run(program, env)
	if err != nil {
		return false
	}
	b, _ := out.(bool)
	return b
}
