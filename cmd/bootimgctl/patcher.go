package main

import (
	"fmt"
	"os"
	"strings"

	bootimg "github.com/barlumicheal/DualBootPatcher"

	"github.com/hashicorp/errwrap"
)

func checkWrap(err error) {
	if err == nil {
		return
	}

	cause := err
	if ce, ok := err.(*bootimg.CodedError); ok && ce.Unwrap() != nil {
		cause = ce.Unwrap()
	}

	wrapped, ok := cause.(errwrap.Wrapper)
	if !ok {
		checkMsg(err, "processing image")
		return
	}

	errs := wrapped.WrappedErrors()
	if len(errs) == 0 {
		checkMsg(err, "processing image")
		return
	}
	msg := errs[0].Error()
	if strings.ContainsRune(msg, ';') {
		msg = msg[:strings.IndexByte(msg, ';')+1]
	}

	fmt.Printf(" ! Error %s!\n", msg)
	os.Exit(2)
}

func parseTargetType(name string) (bootimg.Type, bool) {
	switch strings.ToLower(name) {
	case "android":
		return bootimg.Android, true
	case "loki":
		return bootimg.Loki, true
	case "bump":
		return bootimg.Bump, true
	case "sonyelf":
		return bootimg.SonyElf, true
	default:
		return bootimg.Android, false
	}
}

func convertImage(inputPath, outputPath, targetType, boardName, cmdline string) {
	fmt.Println(" - Reading image")
	img := bootimg.New()
	if !img.LoadFile(inputPath) {
		checkWrap(img.Error())
	}

	fmt.Printf(" - Detected source type: %s\n", img.WasType())

	if targetType != "" {
		t, ok := parseTargetType(targetType)
		if !ok {
			fmt.Printf(" ! Unknown target type '%s'\n", targetType)
			os.Exit(2)
		}
		img.SetType(t)
	}

	i10e := img.Intermediate()
	if boardName != "" {
		i10e.BoardName = boardName
	}
	if cmdline != "" {
		i10e.Cmdline = cmdline
	}

	fmt.Printf(" - Writing image as %s\n", img.TargetType())
	if !img.CreateFile(outputPath) {
		checkWrap(img.Error())
	}

	fmt.Printf(" - Finished! Output is '%s'.\n", outputPath)
}
