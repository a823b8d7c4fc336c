package main

import "fmt"

type versionCmd struct{ r *root }

func (v *versionCmd) Run() error {
	out := v.r.out()
	fmt.Fprintf(out, "%s version %s\n", v.r.Program(), version)
	if commit != "" {
		fmt.Fprintf(out, "commit %s", commit)
		if date != "" {
			fmt.Fprintf(out, " built %s", date)
		}
		fmt.Fprintln(out)
	}
	return nil
}
