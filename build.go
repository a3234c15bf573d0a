package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/craiggwilson/goke/task"
	"github.com/vadyalex/mongoportal/buildscript"
)

var taskRegistry = task.NewRegistry(task.WithAutoNamespaces(true))

func init() {
	taskRegistry.Declare("check:goversion").Description("checks the installed go version").Do(buildscript.CheckMinimumGoVersion)
	taskRegistry.Declare("build").Description("build mongoportal").OptionalArgs("pkgs", "tags").DependsOn("check:goversion").Do(buildscript.BuildTools)
	taskRegistry.Declare("test:unit").Description("runs unit tests").OptionalArgs("pkgs", "tags").Do(buildscript.TestUnit)
	taskRegistry.Declare("test:failpoints").Description("runs unit tests with failpoints enabled").OptionalArgs("pkgs").Do(buildscript.TestFailpoints)
	taskRegistry.Declare("test:integration").Description("runs integration tests").OptionalArgs("pkgs", "tags", "ssl", "auth", "topology").Do(buildscript.TestIntegration)
	taskRegistry.Declare("sa:modtidy").Description("runs go mod tidy and checks for changes").Do(buildscript.SAModTidy)
	taskRegistry.Declare("deps:add").Description("adds a dependency").RequiredArgs("pkg").Do(buildscript.AddDep)
	taskRegistry.Declare("deps:update").Description("updates a dependency").RequiredArgs("pkg").Do(buildscript.UpdateDep)
	taskRegistry.Declare("deps:update-all").Description("updates all direct dependencies").OptionalArgs("exclude").Do(buildscript.UpdateAllDeps)
}

func main() {
	err := task.Run(taskRegistry, os.Args[1:])
	if err == flag.ErrHelp {
		os.Exit(1)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
