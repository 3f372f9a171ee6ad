package graph

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// PrintSchema renders the schema as GraphQL SDL. Root types come first in
// Query/Mutation/Subscription order, the remaining named types follow
// alphabetically, so the output is deterministic for a given schema.
func PrintSchema(s *Schema) []byte {
	buf := &bytes.Buffer{}

	roots := make(map[*Type]bool)
	for _, root := range []*Type{s.Query, s.Mutation, s.Subscription} {
		if root == nil {
			continue
		}
		roots[root] = true
		printType(buf, root)
	}

	named := make([]*Type, 0, len(s.types))
	for _, t := range s.types {
		if roots[t] {
			continue
		}
		if t.Kind == Scalar && IsBuiltinScalar(t.Name) {
			continue
		}
		named = append(named, t)
	}
	sort.Slice(named, func(i, j int) bool {
		return named[i].Name < named[j].Name
	})
	for _, t := range named {
		printType(buf, t)
	}
	return buf.Bytes()
}

func printType(buf *bytes.Buffer, t *Type) {
	if buf.Len() > 0 {
		buf.WriteString("\n")
	}
	printDescription(buf, t.Description, "")
	switch t.Kind {
	case Scalar:
		fmt.Fprintf(buf, "scalar %s\n", t.Name)
	case Enum:
		fmt.Fprintf(buf, "enum %s {\n", t.Name)
		for _, v := range t.EnumValues {
			fmt.Fprintf(buf, "  %s\n", v.Name)
		}
		buf.WriteString("}\n")
	case InputObject:
		fmt.Fprintf(buf, "input %s {\n", t.Name)
		for _, f := range t.InputFields {
			printDescription(buf, f.Description, "  ")
			fmt.Fprintf(buf, "  %s: %s\n", f.Name, f.Type.String())
		}
		buf.WriteString("}\n")
	case Object:
		fmt.Fprintf(buf, "type %s {\n", t.Name)
		for _, f := range t.Fields {
			printDescription(buf, f.Description, "  ")
			fmt.Fprintf(buf, "  %s%s: %s\n", f.Name, printArgs(f.Args), f.Type.String())
		}
		buf.WriteString("}\n")
	}
}

func printArgs(args []*InputValue) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for _, a := range args {
		part := fmt.Sprintf("%s: %s", a.Name, a.Type.String())
		if a.DefaultValue != nil {
			part += fmt.Sprintf(" = %v", a.DefaultValue)
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func printDescription(buf *bytes.Buffer, description, indent string) {
	if description == "" {
		return
	}
	fmt.Fprintf(buf, "%s\"\"\"\n", indent)
	for _, line := range strings.Split(description, "\n") {
		fmt.Fprintf(buf, "%s%s\n", indent, line)
	}
	fmt.Fprintf(buf, "%s\"\"\"\n", indent)
}
