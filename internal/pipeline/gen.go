package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/inkotake/ojoagent/internal/artifact"
	"github.com/inkotake/ojoagent/internal/generator"
	"github.com/inkotake/ojoagent/internal/llmstream"
	"github.com/inkotake/ojoagent/internal/models"
	"github.com/inkotake/ojoagent/internal/prompt"
)

const (
	maxGenAttempts = 3

	genDefaultTemperature  = 0.7
	genMinTemperature      = 0.1
	genValidationTempDrop  = 0.15
	genExceptionTempDrop   = 0.20
	genValidationWait      = 20 * time.Second
	genValidationWaitJit   = 2 * time.Second
	genExceptionWait       = 30 * time.Second
	genExceptionWaitJit    = 1500 * time.Millisecond
	compileAcquireTimeout  = 120 * time.Second
	compileStepTimeout     = 30 * time.Second
)

// runGen implements the Gen stage (spec §4.2.2 Gen): up to maxGenAttempts
// rounds of LLM generation, compile-check, execution, and local
// validation against the extracted reference solution. On the validation
// path's per-case failure, temperature is annealed down (floor
// genMinTemperature) and the attempt is retried after a jittered wait; a
// generation-level exception gets its own, longer wait bucket and lowers
// the temperature (by the larger genExceptionTempDrop) only when the
// failure text names a compile error.
func runGen(sc *stageCtx, providerName llmstream.ProviderName, creds llmstream.UserCredentials) (bool, error) {
	problem, ok, err := sc.workspace.Load()
	if err != nil {
		return false, fmt.Errorf("gen: load problem data: %w", err)
	}
	if !ok {
		return false, fmt.Errorf("gen: no problem_data.json, fetch must run first")
	}

	client, err := sc.runner.cfg.LLMFactory.Build(providerName, creds, sc.req.CancelToken)
	if err != nil {
		return false, fmt.Errorf("gen: build LLM client: %w", err)
	}

	var referenceSolutions string
	if sc.runner.cfg.SolutionSearcher != nil {
		if found, serr := sc.runner.cfg.SolutionSearcher.Search(sc.ctx, sc.canonicalID, problem.Title, problem.Description); serr == nil {
			referenceSolutions = found
		} else {
			sc.logger.Log(sc.ctx, models.StageGen, "solution searcher skipped: %v", serr)
		}
	}

	var retries []models.RetryAttempt
	temperature := genDefaultTemperature

	for attempt := 1; attempt <= maxGenAttempts; attempt++ {
		if sc.cancelled() {
			return false, nil
		}

		sc.logger.Log(sc.ctx, models.StageGen, "gen attempt %d/%d, temperature=%.2f", attempt, maxGenAttempts, temperature)

		generatorCode, solutionCode, err := generateOnce(sc, client, problem, retries, referenceSolutions, temperature)
		if err != nil {
			retries = append(retries, models.RetryAttempt{Attempt: attempt, Verdict: err.Error(), Temperature: temperature})
			if isCompileErrorMessage(err.Error()) {
				temperature = annealTemperature(temperature, genExceptionTempDrop)
			}
			sc.logger.Log(sc.ctx, models.StageGen, "gen attempt %d failed: %v", attempt, err)
			if attempt < maxGenAttempts {
				jitteredWait(sc, genExceptionWait, genExceptionWaitJit)
			}
			continue
		}

		ok, verdict := buildAndValidateTestcases(sc, generatorCode, solutionCode)
		if ok {
			if err := sc.workspace.SetProcessingStatus(models.ProcessingStatus{
				LastStage:      models.StageGen,
				OKGen:          true,
				CompletedGenAt: time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return false, fmt.Errorf("gen: persist status: %w", err)
			}
			logEvent(sc, models.EventTaskProgress, models.StageGen, 100, "gen complete")
			return true, nil
		}

		retries = append(retries, models.RetryAttempt{Attempt: attempt, Verdict: verdict, Snippet: prompt.TruncateSnippet(generatorCode), Temperature: temperature})
		temperature = annealTemperature(temperature, genValidationTempDrop)
		sc.logger.Log(sc.ctx, models.StageGen, "gen attempt %d validation failed: %s", attempt, verdict)
		if attempt < maxGenAttempts {
			jitteredWait(sc, genValidationWait, genValidationWaitJit)
		}
	}

	return false, fmt.Errorf("gen: exhausted %d attempts", maxGenAttempts)
}

func annealTemperature(current, drop float64) float64 {
	next := current - drop
	if next < genMinTemperature {
		return genMinTemperature
	}
	return next
}

// generateOnce calls the LLM once and extracts the generator/solution
// code blocks, compile-checking the generator with one re-extraction
// recovery attempt if the first extraction doesn't compile (spec §4.2.2
// Gen step 5).
func generateOnce(sc *stageCtx, client llmstream.Client, problem *models.ProblemData, retries []models.RetryAttempt, referenceSolutions string, temperature float64) (generatorCode, solutionCode string, err error) {
	req := llmstream.ChatRequest{
		Prompt:       prompt.BuildGenPrompt(problem, retries),
		SystemPrompt: prompt.GenSystemPrompt,
		Model:        "",
		Temperature:  temperature,
		Stream:       true,
		OnChunk:      sc.logger.onChunk(sc.ctx, models.StageGen),
	}

	release, err := sc.runner.cfg.Semaphores.LLM.Acquire(sc.ctx, 0)
	if err != nil {
		return "", "", fmt.Errorf("gen: acquire LLM slot: %w", err)
	}
	result, err := client.ChatCompletion(sc.ctx, req)
	release()
	if err != nil {
		return "", "", fmt.Errorf("gen: LLM call: %w", err)
	}

	generatorCode, solutionCode = prompt.ExtractGeneratorAndSolution(result.Content, result.Reasoning)
	generatorCode = prompt.SanitizeCppCode(generatorCode)
	solutionCode = prompt.SanitizeCppCode(solutionCode)
	if generatorCode == "" {
		return "", "", fmt.Errorf("gen: no generator code block in response")
	}

	scratch := filepath.Join(sc.workspace.Dir(), ".genscratch")
	src, err := generator.WriteSource(scratch, "generator.cpp", generatorCode)
	if err != nil {
		return "", "", err
	}
	if compileErr := sc.runner.cfg.Toolchain.CompileCheck(sc.ctx, src, compileStepTimeout); compileErr != nil {
		sc.logger.Log(sc.ctx, models.StageGen, "generator failed compile-check, retrying extraction once: %v", compileErr)

		recovered, found := prompt.ExtractLastCpp(result.Content, result.Reasoning)
		recovered = prompt.SanitizeCppCode(recovered)
		if !found || recovered == "" || recovered == generatorCode {
			return "", "", fmt.Errorf("compile error: %w", compileErr)
		}

		src, err = generator.WriteSource(scratch, "generator.cpp", recovered)
		if err != nil {
			return "", "", err
		}
		if err := sc.runner.cfg.Toolchain.CompileCheck(sc.ctx, src, compileStepTimeout); err != nil {
			return "", "", fmt.Errorf("compile error after re-extraction: %w", err)
		}
		sc.logger.Log(sc.ctx, models.StageGen, "re-extracted generator compiles, recovered")
		generatorCode = recovered
	}

	return generatorCode, solutionCode, nil
}

// buildAndValidateTestcases runs the generator 10 times to produce the
// .in files, compiles and runs the extracted reference solution against
// each to produce the matching .out files, checks completeness, zips,
// and marks validation_passed (spec §4.2.2 Gen steps 6-10). Without a
// usable solution.cpp, .out files can never be produced, so this always
// fails that attempt — the collapsed single-pass design documented in
// DESIGN.md.
func buildAndValidateTestcases(sc *stageCtx, generatorCode, solutionCode string) (ok bool, verdict string) {
	scratch := filepath.Join(sc.workspace.Dir(), ".genscratch")
	genSrc, err := generator.WriteSource(scratch, "generator.cpp", generatorCode)
	if err != nil {
		return false, err.Error()
	}
	genBin := filepath.Join(scratch, "generator.out")
	if err := sc.runner.cfg.Toolchain.Compile(sc.ctx, genSrc, genBin, compileStepTimeout); err != nil {
		return false, fmt.Sprintf("generator compile failed: %v", err)
	}

	if solutionCode == "" {
		return false, "no reference solution produced, cannot materialize expected outputs"
	}

	release, err := sc.runner.cfg.Semaphores.Compile.Acquire(sc.ctx, compileAcquireTimeout)
	if err != nil {
		return false, fmt.Sprintf("compile slot unavailable: %v", err)
	}
	solSrc, err := generator.WriteSource(scratch, "solution_ref.cpp", solutionCode)
	if err != nil {
		release()
		return false, err.Error()
	}
	solBin := filepath.Join(scratch, "solution_ref.out")
	compileErr := sc.runner.cfg.Toolchain.Compile(sc.ctx, solSrc, solBin, compileStepTimeout)
	release()
	if compileErr != nil {
		return false, fmt.Sprintf("reference solution compile failed: %v", compileErr)
	}

	if err := os.MkdirAll(sc.workspace.TestcasesDir(), 0o755); err != nil {
		return false, err.Error()
	}

	for i := 0; i < artifact.NumTestcases; i++ {
		inRes, err := sc.runner.cfg.Toolchain.Run(sc.ctx, genBin, "", generator.DefaultExecTimeout)
		if err != nil {
			return false, fmt.Sprintf("generator run %d failed: %v", i, err)
		}
		if err := sc.workspace.WriteTestFile(fmt.Sprintf("%d.in", i), []byte(inRes.Stdout)); err != nil {
			return false, err.Error()
		}

		outRes, err := sc.runner.cfg.Toolchain.Run(sc.ctx, solBin, inRes.Stdout, generator.DefaultExecTimeout)
		if err != nil {
			return false, fmt.Sprintf("reference solution run %d failed: %v", i, err)
		}
		if err := sc.workspace.WriteTestFile(fmt.Sprintf("%d.out", i), []byte(outRes.Stdout)); err != nil {
			return false, err.Error()
		}
	}

	if err := artifact.ValidateTestcaseCompleteness(sc.workspace.TestcasesDir()); err != nil {
		return false, err.Error()
	}
	if _, err := sc.workspace.ZipTestcases(sc.canonicalID); err != nil {
		return false, err.Error()
	}
	if err := sc.workspace.SaveSolution(solutionCode); err != nil {
		return false, err.Error()
	}
	if err := sc.workspace.SetValidationResult(true); err != nil {
		return false, err.Error()
	}

	return true, ""
}
