package msql

import (
	"fmt"
	"regexp"
	"strings"

	"verscheduler/internal/core"
)

var (
	// TRANSACTION before TRAN: the alternation is first-match, and TRAN is a
	// prefix of TRANSACTION, so the short form first would leave "SACTION"
	// behind to be misread as the transaction name.
	beginRe = regexp.MustCompile(`(?is)^\s*BEGIN\s+(?:TRANSACTION|TRAN)?\s*([A-Za-z_][A-Za-z0-9_]*)?\s*WITH\s+MARK\s+'([^']*)'\s*;?\s*$`)
	endRe   = regexp.MustCompile(`(?is)^\s*(COMMIT|ROLLBACK)\s*(?:(?:TRANSACTION|TRAN)\s*)?([A-Za-z_][A-Za-z0-9_]*)?\s*;?\s*$`)

	fromRe  = regexp.MustCompile(`(?is)\bFROM\s+([A-Za-z0-9_,\s]+?)(?:\s+WHERE\b|\s+GROUP\b|\s+ORDER\b|\s+LIMIT\b|\s*;|\s*$)`)
	joinRe  = regexp.MustCompile(`(?is)\bJOIN\s+([A-Za-z_][A-Za-z0-9_]*)`)
	updRe   = regexp.MustCompile(`(?is)^\s*UPDATE\s+([A-Za-z_][A-Za-z0-9_]*)`)
	selectP = regexp.MustCompile(`(?is)^\s*SELECT\b`)
)

// ParseText parses one line of the scheduler's textual protocol into an Msql.
// It returns the InvalidMsqlText reason as err on a grammar mismatch.
func ParseText(text string) (Msql, error) {
	trimmed := strings.TrimSpace(text)

	if m := beginRe.FindStringSubmatch(trimmed); m != nil {
		tableops, err := parseMark(m[2])
		if err != nil {
			return nil, err
		}
		return BeginTx{TxName: m[1], TableOps: tableops}, nil
	}

	if m := endRe.FindStringSubmatch(trimmed); m != nil {
		return EndTx{TxName: m[2], Commit: strings.EqualFold(m[1], "COMMIT")}, nil
	}

	if selectP.MatchString(trimmed) {
		tables, err := extractSelectTables(trimmed)
		if err != nil {
			return nil, err
		}
		return Query{QueryText: trimmed, TableOps: core.NewTableOps(tables)}, nil
	}

	if m := updRe.FindStringSubmatch(trimmed); m != nil {
		return Query{
			QueryText: trimmed,
			TableOps:  core.NewTableOps([]core.TableOp{{Table: m[1], Op: core.W}}),
		}, nil
	}

	return nil, fmt.Errorf("unrecognized statement: %q", trimmed)
}

// parseMark parses the body of a WITH MARK clause: "READ t0 t1 WRITE t2 ...".
func parseMark(mark string) (core.TableOps, error) {
	fields := strings.Fields(mark)
	var raw []core.TableOp
	mode := core.Operation(255) // none yet

	for _, f := range fields {
		switch strings.ToUpper(f) {
		case "READ":
			mode = core.R
		case "WRITE":
			mode = core.W
		default:
			if mode == 255 {
				return core.TableOps{}, fmt.Errorf("WITH MARK must start with READ or WRITE: %q", mark)
			}
			raw = append(raw, core.TableOp{Table: f, Op: mode})
		}
	}
	return core.NewTableOps(raw), nil
}

// extractSelectTables finds the tables referenced by a SELECT's FROM/JOIN
// clauses. This is not a SQL parser; it is a best-effort extraction sufficient
// for the simple single/multi-table statements the scheduler's own grammar is
// meant to carry.
func extractSelectTables(sql string) ([]core.TableOp, error) {
	m := fromRe.FindStringSubmatch(sql)
	if m == nil {
		return nil, fmt.Errorf("SELECT statement missing a FROM clause: %q", sql)
	}
	var raw []core.TableOp
	for _, t := range strings.Split(m[1], ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			raw = append(raw, core.TableOp{Table: t, Op: core.R})
		}
	}
	for _, jm := range joinRe.FindAllStringSubmatch(sql, -1) {
		raw = append(raw, core.TableOp{Table: jm[1], Op: core.R})
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("SELECT statement names no tables: %q", sql)
	}
	return raw, nil
}
