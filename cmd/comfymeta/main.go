package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"comfymeta/client"
	"comfymeta/graphapi"
	"comfymeta/metadata"
)

// process CLI arguments
func procCLI() (string, int, bool, bool, int, []string) {
	// .env values are defaults only; flags win
	godotenv.Load()

	defaultAddress := os.Getenv("COMFYMETA_ADDRESS")
	if defaultAddress == "" {
		defaultAddress = "localhost"
	}
	defaultPort := 8188
	if p := os.Getenv("COMFYMETA_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			defaultPort = parsed
		}
	}

	serverAddress := flag.String("address", defaultAddress, "Server address")
	serverPort := flag.Int("port", defaultPort, "Server port")
	fromServer := flag.Bool("server", false, "Resolve the server's generation history instead of local files")
	watch := flag.Bool("watch", false, "Keep watching the server and print a summary as each generation completes")
	budget := flag.Int("budget", 0, "Maximum nodes visited per resolution (0 for unbounded)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		fmt.Printf("  %s [OPTIONS] [filename ...]\n", os.Args[0])
		fmt.Println("\nOptions:")
		flag.PrintDefaults()
		fmt.Println("\nfilename: workflow json file or ComfyUI-rendered png")
	}
	flag.Parse()

	if !*fromServer && !*watch && len(flag.Args()) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	return *serverAddress, *serverPort, *fromServer, *watch, *budget, flag.Args()
}

func main() {
	address, port, fromServer, watch, budget, files := procCLI()
	engine := metadata.NewEngine(metadata.WithNodeBudget(budget))

	if fromServer || watch {
		c := client.NewComfyClient(address, port)
		if fromServer {
			resolveHistory(c, engine)
		}
		if watch {
			watchHistory(c, engine)
		}
		return
	}

	resolveFiles(engine, files)
}

func resolveFiles(engine *metadata.Engine, files []string) {
	var bar *progressbar.ProgressBar
	if len(files) > 1 {
		bar = progressbar.Default(int64(len(files)), "resolving")
	}

	for _, path := range files {
		summary, err := resolveFile(engine, path)
		if err != nil {
			log.Println("Failed to resolve", path, ":", err)
			os.Exit(1)
		}
		printSummary(path, summary)
		if bar != nil {
			bar.Add(1)
		}
	}
}

func resolveFile(engine *metadata.Engine, path string) (metadata.ResolvedSummary, error) {
	var data []byte
	if strings.HasSuffix(strings.ToLower(path), ".png") {
		f, err := os.Open(path)
		if err != nil {
			return metadata.ResolvedSummary{}, err
		}
		defer f.Close()
		data, err = client.ExtractWorkflowJSON(f)
		if err != nil {
			return metadata.ResolvedSummary{}, err
		}
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return metadata.ResolvedSummary{}, err
		}
	}

	workflow, err := graphapi.NewWorkflowFromJSON(data)
	if err != nil {
		return metadata.ResolvedSummary{}, err
	}
	return engine.Resolve(workflow), nil
}

func resolveHistory(c *client.ComfyClient, engine *metadata.Engine) {
	items, err := c.GetPromptHistoryByIndex()
	if err != nil {
		log.Println("Failed to fetch history:", err)
		os.Exit(1)
	}

	var bar *progressbar.ProgressBar
	if len(items) > 1 {
		bar = progressbar.Default(int64(len(items)), "resolving history")
	}
	for _, item := range items {
		printSummary(item.PromptID, engine.Resolve(item.Workflow))
		if bar != nil {
			bar.Add(1)
		}
	}
}

func watchHistory(c *client.ComfyClient, engine *metadata.Engine) {
	monitor := c.NewHistoryMonitor()
	monitor.Start()
	log.Printf("Watching with client ID %s\n", c.ClientID())

	for ev := range monitor.Events() {
		switch ev.Type {
		case client.HistoryEventQueueChanged:
			log.Printf("Queue size: %d\n", ev.QueueRemaining)
		case client.HistoryEventCompleted:
			history, err := c.GetPromptHistoryByID()
			if err != nil {
				log.Println("Failed to fetch history:", err)
				continue
			}
			if item, ok := history[ev.PromptID]; ok {
				printSummary(item.PromptID, engine.Resolve(item.Workflow))
			}
		}
	}
}

func printSummary(label string, summary metadata.ResolvedSummary) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Println("Failed to serialize summary:", err)
		os.Exit(1)
	}
	fmt.Printf("%s:\n%s\n", label, data)
}
