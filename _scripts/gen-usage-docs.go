//go:build ignore
// +build ignore

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-deet/deet/cmd/deet/cmds"
	"github.com/spf13/cobra/doc"
)

const defaultUsageDir = "./Documentation/usage"

func main() {
	man := flag.Bool("man", false, "generate man pages instead of markdown")
	flag.Parse()
	usageDir := defaultUsageDir
	if flag.NArg() > 0 {
		usageDir = flag.Arg(0)
	}
	if err := os.MkdirAll(usageDir, 0755); err != nil {
		log.Fatal(err)
	}

	root := cmds.New()
	root.DisableAutoGenTag = true

	if *man {
		header := &doc.GenManHeader{Title: "DEET", Section: "1", Source: "deet"}
		if err := doc.GenManTree(root, header, usageDir); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := doc.GenMarkdownTree(root, usageDir); err != nil {
		log.Fatal(err)
	}
	// GenMarkdownTree ignores additional help topic commands, so we have to do this manually
	logCmd, _, err := root.Find([]string{"log"})
	if err != nil {
		log.Fatal(err)
	}
	if err := doc.GenMarkdownTree(logCmd, usageDir); err != nil {
		log.Fatal(err)
	}
	fh, err := os.OpenFile(filepath.Join(usageDir, "deet.md"), os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		log.Fatalf("appending to deet.md: %v", err)
	}
	defer fh.Close()
	fmt.Fprintln(fh, "* [deet log](deet_log.md)\t - Help about logging flags")
}
