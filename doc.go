// Cannoli - Visual Flow Execution for LLM Workflows
//
// Cannoli executes flow graphs drawn on JSON Canvas files. Nodes hold prompts,
// content and HTTP calls; arrows carry variables, chat history and choices
// between them; groups loop or fan out in parallel. The runtime compiles a
// canvas into a typed dependency graph and runs it event-driven: every node
// executes as soon as its incoming edges are satisfied.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/DeabLabs/cannoli-sub001
//
// Run a canvas:
//
//	raw, _ := os.ReadFile("flow.canvas")
//	stoppage, err := engine.RunCannoli(ctx, engine.RunParams{
//		CanvasJSON: raw,
//		Args:       map[string]string{"question": "What is a cannoli?"},
//		LLMConfigs: []providers.Config{{
//			Provider: providers.ProviderOpenAI,
//			Model:    "gpt-4o",
//			APIKey:   os.Getenv("OPENAI_API_KEY"),
//		}},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(stoppage.Results["answer"])
//
// # Packages
//
//   - canvas: JSON Canvas parsing that round-trips unknown keys
//   - factory: compiles a canvas into a verified, typed dependency graph
//   - engine: the event-driven scheduler and node behaviors
//   - providers: LLM backends, function calls and transcript formatting
//   - vault: note, file and property access for reference nodes
//   - actions: registered Go functions callable from http nodes
//   - fetch: the HTTP client behind http nodes and the webpage action
//   - persist: run state mirroring for progress display and recording
//   - store: append-only run records on SQLite, Postgres or Redis
//   - viz: Mermaid export and colored terminal progress
//
// The cannoli command under cmd/cannoli runs canvas files from the terminal.
package cannoli
