package main

import (
	"cmp"
	"fmt"
	"log"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/leapstack-labs/datarade/internal/cli"
	"github.com/leapstack-labs/datarade/internal/cli/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// commandDoc is the documented surface of one top-level command.
type commandDoc struct {
	Name    string
	Short   string
	Long    string
	Use     string
	Aliases []string
	Example string
	Local   *pflag.FlagSet
	Global  *pflag.FlagSet
}

// envVar is a configuration key reachable through the environment.
type envVar struct {
	Name string
	Key  string
}

func generateCLIDocs(outDir string) error {
	log.Printf("writing CLI reference to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	docs := collectCommands(root)

	pages := map[string][]byte{"index.md": renderIndex(root, docs)}
	for _, d := range docs {
		pages[d.Name+".md"] = renderCommand(d)
	}

	for _, name := range slices.Sorted(maps.Keys(pages)) {
		if err := os.WriteFile(filepath.Join(outDir, name), pages[name], 0600); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		log.Printf("  %s", name)
	}
	return nil
}

func collectCommands(root *cobra.Command) []commandDoc {
	var docs []commandDoc
	for _, cmd := range root.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || strings.HasPrefix(cmd.Name(), "__") {
			continue
		}
		use := strings.TrimSuffix(cmd.UseLine(), " [flags]")
		if !strings.HasPrefix(use, root.Name()) {
			use = root.Name() + " " + use
		}
		d := commandDoc{
			Name:    cmd.Name(),
			Short:   cmd.Short,
			Long:    cmd.Long,
			Use:     use,
			Aliases: cmd.Aliases,
			Example: cleanExample(cmd.Example),
		}
		if cmd.HasAvailableLocalFlags() {
			d.Local = cmd.LocalFlags()
		}
		if cmd.HasAvailableInheritedFlags() {
			d.Global = cmd.InheritedFlags()
		}
		docs = append(docs, d)
	}
	return docs
}

func renderIndex(root *cobra.Command, docs []commandDoc) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for datarade")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(root.Long)
	w.Header(2, "Installation")
	w.CodeBlock("bash", "go install github.com/leapstack-labs/datarade/cmd/datarade@latest")

	w.Header(2, "Commands")
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []string{
			fmt.Sprintf("[%s](/cli/%s)", InlineCode(d.Name), d.Name),
			cleanDescription(d.Short),
		})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	writeFlagsTable(w, root.PersistentFlags())

	w.Header(2, "Environment Variables")
	w.Paragraph("Configuration keys map to " + config.EnvPrefix + " variables. A double underscore separates nested keys. " +
		"Flags take precedence over the environment, which takes precedence over datarade.yaml.")
	var envRows [][]string
	for _, v := range configEnvVars() {
		envRows = append(envRows, []string{InlineCode(v.Name), InlineCode(v.Key)})
	}
	w.Table([]string{"Variable", "Key"}, envRows)

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Success"},
		{InlineCode("1"), "Failure, reported on stderr"},
	})
	return w.Bytes()
}

func renderCommand(d commandDoc) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter(d.Name, d.Short)
	w.GeneratedMarker()

	w.Header(1, d.Name)
	w.Paragraph(cmp.Or(d.Long, d.Short))
	w.Header(2, "Usage")
	w.CodeBlock("bash", d.Use)

	if len(d.Aliases) > 0 {
		w.Header(2, "Aliases")
		items := make([]string, len(d.Aliases))
		for i, a := range d.Aliases {
			items[i] = InlineCode(a)
		}
		w.BulletList(items)
	}
	if d.Local != nil {
		w.Header(2, "Options")
		writeFlagsTable(w, d.Local)
	}
	if d.Global != nil {
		w.Header(2, "Global Options")
		writeFlagsTable(w, d.Global)
	}
	if d.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", d.Example)
	}
	return w.Bytes()
}

func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		short := ""
		if f.Shorthand != "" {
			short = "-" + f.Shorthand
		}
		def := f.DefValue
		if def != "" && f.Value.Type() == "string" {
			def = InlineCode(def)
		}
		rows = append(rows, []string{InlineCode("--" + f.Name), short, def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Short", "Default", "Description"}, rows)
}

// configEnvVars lists the scalar configuration keys by walking the koanf
// tags of config.Config. Map-valued sections are keyed by user data and
// are left out.
func configEnvVars() []envVar {
	var vars []envVar
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := range t.NumField() {
			f := t.Field(i)
			tag := f.Tag.Get("koanf")
			if tag == "" || tag == "-" {
				continue
			}
			key := prefix + tag
			switch f.Type.Kind() {
			case reflect.Struct:
				walk(f.Type, key+".")
			case reflect.Map:
			default:
				name := config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
				vars = append(vars, envVar{Name: name, Key: key})
			}
		}
	}
	walk(reflect.TypeFor[config.Config](), "")
	return vars
}

// cleanExample strips the indentation shared by every non-blank line.
func cleanExample(example string) string {
	lines := strings.Split(example, "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return strings.TrimSpace(example)
	}
	for i, line := range lines {
		if len(line) >= indent {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
