// Command autolow drives the high-to-low poly pipeline over a saved session.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "import", "i":
		err = cmdImport(args)
	case "queue", "q":
		err = cmdQueue(args)
	case "workflow", "w":
		err = cmdWorkflow(args)
	case "image-path":
		err = cmdImagePath(args)
	case "start", "run":
		err = cmdStart(args)
	case "config":
		err = cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Autolow - high to low poly pipeline

Usage:
  autolow <command> [options] [arguments]

Commands:
  import, i     Import OBJ meshes into the session scene
  queue, q      Edit the work queue (add, remove, up, down, list, select)
  workflow, w   Apply a workflow preset (full, transfer, active, none)
  image-path    Set the folder baked images are written to
  start, run    Process the queued objects, or the active object
  config        Write a default config file (config init <path>)

Common options:
  -session <file>   Session file (default: autolow-session.yaml)

Examples:
  autolow import -session rock.yaml rock.obj
  autolow queue -session rock.yaml select Rock
  autolow queue -session rock.yaml add
  autolow workflow -session rock.yaml transfer
  autolow start -session rock.yaml -resolution 2048 -format webp
  autolow config init ./autolow.yaml`)
}
