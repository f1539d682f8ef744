// Package sql parses annotated SQL templates and renders them into patch SQL.
package sql

/*
Template Syntax

# Overview

A template is a plain .sql file whose first lines describe the query. The header
is a block of "-- @" comment lines; everything after the first other line is the
SQL body. Values are written into the body at {{parameter_name}} placeholders.

	-- @id: activate-contracts
	-- @name: Activate contracts
	-- @description: Sets the status of a list of contracts
	-- @tags: contract, status
	-- @param: status|text|New status|true
	-- @param-file: ids|text|Contract IDs (one per line)|true

	UPDATE contract
	SET status = {{status}}
	WHERE id IN ({{ids}});

# Header Directives

	-- @id: <token>                      required, unique across the template directory
	-- @name: <display text>             optional
	-- @description: <free text>         optional
	-- @tags: a, b, c                    optional, comma separated
	-- @param: name|type|label|required  scalar parameter
	-- @param-file: name|type|label|required
	                                     list parameter, uploaded as a file with one value per line

Keys are split from values at the first colon. Unknown keys are ignored so new
directives can be added without breaking older deployments. A parameter line
needs at least name, type and label; the fourth field marks the parameter
required only when it is "true" (any case). Shorter lines are skipped.

Parameter types:

	text            quoted string literal (default for unknown types)
	number, integer emitted unquoted
	date            DD/MM/YY; YYYY-MM-DD input is converted, anything else is quoted as given

# Values

A value that is empty, blank or "null" (any case) renders as NULL. Text and
dates are single-quoted with embedded quotes doubled: O'Brien becomes 'O''Brien'.
List parameters render as 'a', 'b', 'c' with null entries dropped, or NULL when
nothing remains. The template supplies the surrounding parentheses.

# Execution Modes

Unitary ("unitaire"): the body is rendered once. When a list parameter carries
more than MaxInListSize (999) values, the statement is repeated for each chunk
of at most 999 values, each copy preceded by

	-- Batch 2/3 (999 values)

Mass ("masse"): an uploaded CSV file drives the rendering. Each line is split on
commas and the columns map, in order, to the non-list parameters in the order
they are declared. Missing or empty columns fall back to the request's form
values, then to NULL. Each copy is preceded by

	-- Row 4/10

Copies are separated by a blank line in both modes.

# Placeholders

Placeholder names follow identifier rules: [a-zA-Z_]\w*. A placeholder that
matches no declared parameter is left in the output unchanged; the registry
logs such templates at start-up. Do not put placeholders inside quotes:
'{{name}}' would render as ''Alice''.
*/
