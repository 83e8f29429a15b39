package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/tgulacsi/wrap"
)

const (
	cliWelcome = `
Please drag and drop the boot image you want to convert
into this window.

After you drop the file, press the [Enter] key to continue.

> `
	cliStatError = `
An error occurred verifying that file:
"%s"

Try dragging and dropping a boot image you are able
to open.

> `
)

func cliPrompt(msg string) {
	var cols uint = 60
	wrapped := wrap.String(msg, cols)

	fmt.Printf(`
%s

> `, wrapped)
}

func cliPromptDrag(msg string) {
	cliPrompt(msg + " Try dragging and dropping a boot image here.")
}

// cliGetInputPath is the interactive fallback for getting an input path.
func cliGetInputPath() (path string) {
	fmt.Print(cliWelcome)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		if !scanner.Scan() {
			fmt.Println()
			os.Exit(2)
		}

		path = scanner.Text()
		path = strings.TrimSpace(path)

		if (strings.HasPrefix(path, "\"") && strings.HasSuffix(path, "\"")) || (strings.HasPrefix(path, "'") && strings.HasSuffix(path, "'")) {
			path = path[1 : len(path)-1]
		}

		if len(path) == 0 {
			cliPromptDrag("That wasn't the path to a file.")
			continue
		}

		fInfo, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				cliPromptDrag("That file doesn't exist.")
			} else {
				fmt.Printf(cliStatError, err.Error())
			}

			continue
		}

		if fInfo.IsDir() {
			cliPromptDrag("That's a folder, not a file.")
			continue
		}

		break
	}

	fmt.Println()
	return
}
