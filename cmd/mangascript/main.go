/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mangascript/internal/crash"
	"mangascript/internal/workspace"
)

// current lets the crash handler autosave whichever folder a command has open.
type current struct{ ws *workspace.Workspace }

func (c *current) Root() string {
	if c.ws == nil {
		return ""
	}
	return c.ws.Root()
}

func (c *current) AutosaveCrash() (string, error) {
	if c.ws == nil {
		return "", fmt.Errorf("no folder open")
	}
	return c.ws.AutosaveCrash()
}

func main() {
	cur := &current{}
	defer crash.Recover(cur)
	if code := execute(newRootCmd(cur), os.Stderr); code != 0 {
		os.Exit(code)
	}
}

// execute runs root and reports a failed command on stderr. It returns the exit code.
func execute(root *cobra.Command, stderr io.Writer) int {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
