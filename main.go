package main

import (
	"context"
	"fmt"
	"os"

	"github.com/conneroisu/ssg/cmd"
	ssgerrors "github.com/conneroisu/ssg/internal/errors"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, ssgerrors.Format(err))
		os.Exit(1)
	}
}
