/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package banner prints the startup banner of the pagedb command line tools.

The ASCII art logo is embedded from banner.txt at compile time. Colors use
ANSI escape sequences and are dropped when the output is not a terminal:

	banner.Print(os.Stdout, cfg, isatty)
*/
package banner

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"pagedb/internal/config"
)

//go:embed banner.txt
var banner string

// ANSI escape codes for terminal text formatting.
const (
	AnsiRed    = "\033[31m"
	AnsiGreen  = "\033[32m"
	AnsiYellow = "\033[33m"
	AnsiCyan   = "\033[36m"
	AnsiReset  = "\033[0m"
	AnsiBold   = "\033[1m"
	AnsiDim    = "\033[2m"
)

// Version information reported by the banner and the version command.
const (
	Version   = "01.26.14"
	Copyright = "(c)2026 Firefly Software Solutions Inc"
	License   = "Licensed under Apache 2.0"
)

type painter struct{ color bool }

func (p painter) paint(s string, codes ...string) string {
	if !p.color || len(codes) == 0 {
		return s
	}
	return strings.Join(codes, "") + s + AnsiReset
}

// Print writes the logo, the version line and a summary of cfg to w.
// A nil cfg prints the logo and version only.
func Print(w io.Writer, cfg *config.Config, color bool) {
	p := painter{color: color}
	fmt.Fprintln(w, p.paint(strings.TrimRight(banner, "\n"), AnsiRed))
	fmt.Fprintln(w, p.paint(":: pagedb ::                    (v"+Version+")", AnsiRed, AnsiBold))
	fmt.Fprintln(w, p.paint("  Embedded paged SQL database", AnsiDim))
	fmt.Fprintln(w)

	if cfg != nil {
		printConfig(w, p, cfg)
	}

	fmt.Fprintln(w, p.paint("  "+Copyright+" - "+License, AnsiDim))
	fmt.Fprintln(w)
}

func printConfig(w io.Writer, p painter, cfg *config.Config) {
	source := p.paint("defaults + environment", AnsiDim)
	if cfg.ConfigFile != "" {
		source = p.paint(cfg.ConfigFile, AnsiYellow)
	}
	fmt.Fprintf(w, "  %s %s\n\n", p.paint("Config:", AnsiDim), source)

	printSectionHeader(w, p, "Storage", 78)
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = p.paint("memory only", AnsiYellow)
	}
	printRow2(w, fmtKV(p, "Data", dataDir), fmtKV(p, "Database", cfg.DefaultDatabase))
	printRow2(w, fmtKV(p, "B-tree degree", fmt.Sprint(cfg.BTreeDegree)),
		fmtKV(p, "Statement cache", fmt.Sprint(cfg.StatementCacheSize)))

	encryption := p.paint("off", AnsiYellow)
	if cfg.EncryptionEnabled {
		encryption = p.paint("AES-256-GCM", AnsiGreen)
	}
	printRow2(w, fmtKV(p, "Collation", cfg.Collation+"/"+cfg.Charset), fmtKV(p, "Encryption", encryption))
	compression := cfg.Compression
	if compression == "" {
		compression = "none"
	}
	printRow2(w, fmtKV(p, "Compression", compression), "")
	fmt.Fprintln(w)
}

func printSectionHeader(w io.Writer, p painter, title string, width int) {
	rightPad := width - 2 - len(title) - 4
	if rightPad < 0 {
		rightPad = 0
	}
	fmt.Fprintf(w, "  %s[ %s ]%s\n", p.paint("--", AnsiDim), p.paint(title, AnsiCyan, AnsiBold),
		p.paint(strings.Repeat("-", rightPad), AnsiDim))
}

func fmtKV(p painter, key, value string) string {
	return p.paint(key+":", AnsiDim) + " " + value
}

func printRow2(w io.Writer, col1, col2 string) {
	fmt.Fprintf(w, "  %-40s %s\n", col1, col2)
}
