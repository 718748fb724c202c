// Copyright 2025 SnapEvent Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snapevent/go-event-extract/internal/core/cor"
)

// appendCommand appends its tag to the piped string so tests can observe
// execution order and the CtxIn/CtxOut piping.
type appendCommand struct {
	cor.BaseCommand
	tag  string
	fail bool
}

func newAppendCommand(tag string, fail bool) *appendCommand {
	return &appendCommand{BaseCommand: *cor.NewBaseCommand("append-" + tag), tag: tag, fail: fail}
}

func (c *appendCommand) Execute(chCtx cor.Context) {
	if c.fail {
		chCtx.AddError(c.GetName(), errors.New("intentional failure"))
		return
	}
	in, _ := chCtx.Get(cor.CtxIn).(string)
	chCtx.Add(cor.CtxOut, in+c.tag)
}

func (c *appendCommand) IsExecutable(_ cor.Context) bool { return true }

func runChain(chain cor.Chain, seed string) cor.Context {
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(context.Background())
	chCtx.Add(cor.CtxIn, seed)
	chain.Execute(chCtx)
	return chCtx
}

func TestChainPipesOutputToInput(t *testing.T) {
	chain := cor.NewBaseChain("test-chain")
	chain.AddCommand(newAppendCommand("a", false))
	chain.AddCommand(newAppendCommand("b", false))
	chain.AddCommand(newAppendCommand("c", false))

	chCtx := runChain(chain, "seed-")
	assert.False(t, chCtx.HasErrors())
	assert.Equal(t, "seed-abc", chCtx.Get(cor.CtxIn))
}

func TestChainStopsOnFirstError(t *testing.T) {
	chain := cor.NewBaseChain("test-chain")
	chain.AddCommand(newAppendCommand("a", false))
	chain.AddCommand(newAppendCommand("b", true))
	chain.AddCommand(newAppendCommand("c", false))

	chCtx := runChain(chain, "")
	assert.True(t, chCtx.HasErrors())
	assert.Len(t, chCtx.GetErrors(), 1)
	// "c" never ran, so the piped value still holds "a"'s output.
	assert.NotEqual(t, "ac", chCtx.Get(cor.CtxIn))
}

func TestChainContinueOnFailure(t *testing.T) {
	chain := cor.NewBaseChain("test-chain")
	chain.ContinueOnFailure(true)
	chain.AddCommand(newAppendCommand("a", true))
	chain.AddCommand(newAppendCommand("b", false))

	chCtx := runChain(chain, "")
	assert.True(t, chCtx.HasErrors())
	assert.Equal(t, "b", chCtx.Get(cor.CtxIn))
}

func TestContextCloseRemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "one.tmp")
	second := filepath.Join(dir, "two.tmp")
	assert.NoError(t, os.WriteFile(first, []byte("x"), 0o644))
	assert.NoError(t, os.WriteFile(second, []byte("y"), 0o644))

	chCtx := cor.NewBaseContext()
	chCtx.SetContext(context.Background())
	chCtx.AddTempFile(first)
	chCtx.AddTempFile(second)
	chCtx.AddTempFile(filepath.Join(dir, "never-created.tmp"))
	chCtx.Close()

	_, err := os.Stat(first)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(second)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, chCtx.GetTempFiles())
}

func TestContextPropertyBag(t *testing.T) {
	chCtx := cor.NewBaseContext()
	chCtx.Add("key", 42)
	assert.Equal(t, 42, chCtx.Get("key"))
	chCtx.Remove("key")
	assert.Nil(t, chCtx.Get("key"))
}
