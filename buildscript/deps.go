package buildscript

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/craiggwilson/goke/pkg/sh"
	"github.com/craiggwilson/goke/task"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"golang.org/x/mod/modfile"
)

// AddDep adds a new dependency. Pass a package name with an optional `@$version` at the end.
func AddDep(ctx *task.Context) error {
	return addOrUpdateGoDep(ctx, ctx.Get("pkg"), false)
}

// UpdateDep updates an existing dependency. Pass a package name with an optional `@$version` at the
// end.
func UpdateDep(ctx *task.Context) error {
	return addOrUpdateGoDep(ctx, ctx.Get("pkg"), true)
}

// UpdateAllDeps updates all direct dependencies to their latest versions. To exclude one or more
// packages, set the `-exclude` argument to a list of packages separated by a space.
func UpdateAllDeps(ctx *task.Context) error {
	pkgs, err := directGoDependencies()
	if err != nil {
		return err
	}

	excludeSet := mapset.NewSet(strings.Fields(ctx.Get("exclude"))...)

	for _, pkg := range pkgs {
		if excludeSet.Contains(pkg) {
			ctx.Logf("Excluding %s from the package updates\n", pkg)
			continue
		}
		if err := goGet(ctx, pkg, true); err != nil {
			return err
		}
	}

	return sh.Run(ctx, "go", "mod", "tidy")
}

func directGoDependencies() ([]string, error) {
	root, err := repoRoot()
	if err != nil {
		return nil, err
	}

	goModPath := filepath.Join(root, "go.mod")
	raw, err := os.ReadFile(goModPath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read go.mod file at %s", goModPath)
	}

	file, err := modfile.Parse(goModPath, raw, nil)
	if err != nil {
		return nil, err
	}

	modules := mapset.NewSet[string]()
	for _, req := range file.Require {
		if req.Indirect {
			continue
		}
		modules.Add(req.Mod.Path)
	}

	return mapset.Sorted(modules), nil
}

func addOrUpdateGoDep(ctx *task.Context, pkg string, isUpdate bool) error {
	if pkg == "" {
		return errors.New("the -pkg argument is required")
	}
	if err := goGet(ctx, pkg, isUpdate); err != nil {
		return err
	}
	return sh.Run(ctx, "go", "mod", "tidy")
}

func goGet(ctx *task.Context, pkg string, isUpdate bool) error {
	v, err := goVersion(ctx)
	if err != nil {
		return err
	}

	args := []string{"get"}
	if isUpdate {
		args = append(args, "-u")
	}
	args = append(args, pkg)
	cmd := exec.Command("go", args...)
	// Pinning GOTOOLCHAIN keeps go from upgrading itself when a dependency
	// requires a newer version.
	cmd.Env = append(
		syscall.Environ(),
		"GOTOOLCHAIN="+v,
	)

	return sh.RunCmd(ctx, cmd)
}

var versionRE = regexp.MustCompile(`go version (go\d+\.\d+\.\d+) `)
var v string

func goVersion(ctx *task.Context) (string, error) {
	if v != "" {
		return v, nil
	}
	out, err := sh.RunOutput(ctx, "go", "version")
	if err != nil {
		return "", err
	}

	matches := versionRE.FindStringSubmatch(out)
	if len(matches) < 2 {
		return "", fmt.Errorf(
			"could not parse go version from `go version` output: %s",
			strings.TrimSpace(out),
		)
	}

	v = matches[1]

	return v, nil
}
