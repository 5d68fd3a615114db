//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of CSVClean.
//
// CSVClean is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// CSVClean is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with CSVClean. If not, see https://www.gnu.org/licenses/.

package loader

import (
	"fmt"
	"regexp"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateIdentifier reports whether name is a plain SQL identifier: a letter or underscore
// followed by up to 62 letters, digits or underscores.
func ValidateIdentifier(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// AllowList restricts loads to a fixed set of table names. A nil AllowList admits every
// name that passes ValidateIdentifier.
type AllowList map[string]struct{}

// NewAllowList builds an AllowList, rejecting names that are not valid identifiers.
func NewAllowList(names ...string) (AllowList, error) {
	al := make(AllowList, len(names))
	for _, n := range names {
		if err := ValidateIdentifier(n); err != nil {
			return nil, err
		}
		al[n] = struct{}{}
	}
	return al, nil
}

// Check returns an error unless table is a valid identifier admitted by the list.
func (al AllowList) Check(table string) error {
	if err := ValidateIdentifier(table); err != nil {
		return err
	}
	if al == nil {
		return nil
	}
	if _, ok := al[table]; !ok {
		return fmt.Errorf("table %q is not in the allow list", table)
	}
	return nil
}

// quoteIdent double-quotes an identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral single-quotes a string literal, doubling embedded quotes.
func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}
