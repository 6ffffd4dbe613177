// qgen init [name], qgen new [path]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/qgen/internal/msg"
	"github.com/spf13/cobra"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "qgen"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

// declaration returns the qgen.toml of a new workspace holding one project.
func declaration(name string, lib bool) string {
	if lib {
		return `[workspace]
name = "` + name + `"

[[workspace.configuration]]
options = { c_standard = "11", cpp_standard = "17" }

[[project]]
name = "` + name + `"
type = "StaticLibrary"
files = ["src/**/*.c", "src/**/*.cpp", "include/**/*.h"]
exported = ["include"]

[[project.configuration]]
configuration_types = ["Debug"]
defines = ["` + strings.ToUpper(identifier(name)) + `_DEBUG"]
`
	}
	return `[workspace]
name = "` + name + `"

[[workspace.configuration]]
options = { c_standard = "11", cpp_standard = "17" }

[[project]]
name = "` + name + `"
files = ["src/**/*.c", "src/**/*.cpp", "src/**/*.h"]

[[project.configuration]]
when = 'target_os == "Windows"'
defines = ["_CRT_SECURE_NO_WARNINGS"]
`
}

// identifier turns name into a C identifier.
func identifier(name string) string {
	b := []byte(name)
	for i, c := range b {
		if !isName(string(c)) && !(i > 0 && '0' <= c && c <= '9') {
			b[i] = '_'
		}
	}
	return string(b)
}

// initIn initializes a workspace in an existing directory.
func initIn(dir, name string, lib bool) {
	writefile(declaration(name, lib), dir, "qgen.toml")
	mkdir(dir, "src")

	if lib {
		id := identifier(name)
		guard := strings.ToUpper(id) + "_H"
		mkdir(dir, "include", name)

		writefile(`#include <stdio.h>
#include "`+name+`/`+name+`.h"

void `+id+`_hello(void) {
    puts("Hello, World!");
}
`, dir, "src", name+".c")

		writefile(`#ifndef `+guard+`
#define `+guard+`

#ifdef __cplusplus
extern "C" {
#endif

void `+id+`_hello(void);

#ifdef __cplusplus
} // extern "C"
#endif

#endif
`, dir, "include", name, name+".h")
	} else {
		writefile(`// You may change this to a .cpp (.cc) file if you'd like
#include <stdio.h>

int main(void) {
    puts("Hello, World!");
    return 0;
}
`, dir, "src", "main.c")
	}

	writefile(`build/
`, dir, ".gitignore")

	programName := getProgramName()
	hint := programName
	if dir != "." {
		hint = fmt.Sprintf("%s SourceDirectory=%s", programName, dir)
	}
	fmt.Printf("You can now do %s to generate build files, or %s to build and run.\n",
		color.HiCyanString(hint), color.HiCyanString(strings.Replace(hint, programName, programName+" run", 1)))
}

var library bool

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new workspace in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0], library)
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new workspace in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]), library)
	},
}

func init() {
	// qgen init subcommand
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&library, "lib", "l", false, "Create a static library project")

	// qgen new subcommand
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolVarP(&library, "lib", "l", false, "Create a static library project")
}
