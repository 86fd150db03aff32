// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/wgsl"
)

// Parse turns WGSL source into an IR module. Syntax errors and front-end
// lowering errors (unknown identifiers, type mismatches caught while
// building the IR) are both reported as *ParseError with the first location.
func Parse(source string) (*ir.Module, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, toParseError(err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, toParseError(err)
	}
	slogger().Debug("shader: parsed",
		"types", len(module.Types),
		"functions", len(module.Functions),
		"entry_points", len(module.EntryPoints))
	return module, nil
}

// The front end reports locations only in its messages, as
// "line L, column C: msg" from the parser and "L:C: msg" from lowering.
var (
	parserLocation = regexp.MustCompile(`line (\d+), column (\d+): (.*)$`)
	lowerLocation  = regexp.MustCompile(`(?:^|: )(\d+):(\d+): (.*)$`)
	moreErrors     = regexp.MustCompile(` \(and \d+ more errors?\)$`)
)

func toParseError(err error) *ParseError {
	var pe *wgsl.ParseError
	if errors.As(err, &pe) && pe != nil {
		return &ParseError{Line: pe.Line, Column: pe.Column, Message: pe.Message, Err: err}
	}
	var pv wgsl.ParseError
	if errors.As(err, &pv) {
		return &ParseError{Line: pv.Line, Column: pv.Column, Message: pv.Message, Err: err}
	}
	text := moreErrors.ReplaceAllString(err.Error(), "")
	for _, re := range []*regexp.Regexp{parserLocation, lowerLocation} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		line, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		return &ParseError{Line: line, Column: col, Message: m[3], Err: err}
	}
	return &ParseError{Message: text, Err: err}
}
