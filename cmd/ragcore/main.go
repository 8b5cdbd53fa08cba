package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragcore/ragcore/internal/config"
	"github.com/ragcore/ragcore/internal/embedprovider"
	"github.com/ragcore/ragcore/internal/httpapi"
	"github.com/ragcore/ragcore/internal/obslog"
	"github.com/ragcore/ragcore/pkg/registry"
)

var (
	configPath string
	addr       string
	server     string
)

var rootCmd = &cobra.Command{
	Use:   "ragcore",
	Short: "RAG vector index service",
	Long:  `ragcore manages libraries of chunked, embedded documents and serves nearest-neighbor search over them.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
		}
		store := config.NewStore(cfg)
		logger := obslog.New(os.Stdout, store.LogLevel(), store.LogFormat())

		if configPath != "" {
			watcher, err := config.NewWatcher(configPath, store, logger)
			if err != nil {
				return fmt.Errorf("start config watcher: %w", err)
			}
			defer watcher.Close()
		}

		reg := registry.New(logger)
		embedder := newEmbedder(cfg)
		srv := httpapi.New(reg, embedder, cfg, logger)

		logger.Info("starting server", "addr", addr)
		return http.ListenAndServe(addr, srv)
	},
}

func newEmbedder(cfg config.Config) *embedprovider.CachedEmbedder {
	var base embedprovider.Embedder
	if cfg.EmbeddingProvider.Endpoint != "" {
		base = embedprovider.NewHTTPEmbedder(cfg.EmbeddingProvider.Endpoint, cfg.EmbeddingProvider.APIKey, 0, nil)
	} else {
		base = embedprovider.NewHashEmbedder(256)
	}
	cached, err := embedprovider.NewCachedEmbedder(base, 1024)
	if err != nil {
		log.Fatalf("construct embedder cache: %v", err)
	}
	return cached
}

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage libraries on a running ragcore server",
}

var libraryCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexType, _ := cmd.Flags().GetString("index-type")
		var resp map[string]any
		if err := apiCall(http.MethodPost, "/libraries", map[string]any{
			"name":       args[0],
			"index_type": indexType,
		}, &resp); err != nil {
			return err
		}
		fmt.Printf("library %q created with id %v\n", args[0], resp["id"])
		return nil
	},
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List libraries",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp map[string]any
		if err := apiCall(http.MethodGet, "/libraries", nil, &resp); err != nil {
			return err
		}
		libs, _ := resp["libraries"].([]any)
		for _, raw := range libs {
			lib, _ := raw.(map[string]any)
			fmt.Printf("%v\t%v\t%v\t%v chunks\n", lib["id"], lib["name"], lib["index_type"], lib["chunk_count"])
		}
		return nil
	},
}

var libraryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiCall(http.MethodDelete, "/libraries/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Printf("library %s deleted\n", args[0])
		return nil
	},
}

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage documents within a library",
}

var documentAddCmd = &cobra.Command{
	Use:   "add <library-id>",
	Short: "Chunk, embed, and install a document read from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chunkSize, _ := cmd.Flags().GetInt("chunk-size")
		docID, _ := cmd.Flags().GetString("doc-id")

		text, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}

		var resp map[string]any
		if err := apiCall(http.MethodPost, "/libraries/"+args[0]+"/documents", map[string]any{
			"document_id": docID,
			"text":        string(text),
			"chunk_size":  chunkSize,
		}, &resp); err != nil {
			return err
		}
		fmt.Printf("installed %v chunks for document %v\n", resp["chunk_count"], resp["document_id"])
		return nil
	},
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete <library-id> <doc-id>",
	Short: "Remove every chunk belonging to a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiCall(http.MethodDelete, "/libraries/"+args[0]+"/documents/"+args[1], nil, nil); err != nil {
			return err
		}
		fmt.Printf("document %s removed\n", args[1])
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <library-id> <query text...>",
	Short: "Search a library for the k nearest chunks to a query",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("top-k")
		minSim, _ := cmd.Flags().GetFloat64("min-similarity")
		outputJSON, _ := cmd.Flags().GetBool("json")

		var resp map[string]any
		if err := apiCall(http.MethodPost, "/libraries/"+args[0]+"/search", map[string]any{
			"query_text":     strings.Join(args[1:], " "),
			"k":              k,
			"min_similarity": minSim,
		}, &resp); err != nil {
			return err
		}

		if outputJSON {
			data, _ := json.MarshalIndent(resp, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		results, _ := resp["results"].([]any)
		fmt.Printf("%d results out of %v chunks searched (%.2fms):\n",
			len(results), resp["total_chunks_searched"], resp["query_time_ms"])
		for i, raw := range results {
			r, _ := raw.(map[string]any)
			chunk, _ := r["chunk"].(map[string]any)
			fmt.Printf("%d. [%.4f] %v: %s\n", i+1, r["similarity_score"], chunk["id"], truncate(fmt.Sprint(chunk["text"]), 80))
		}
		return nil
	},
}

func apiCall(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, server+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file (serve only)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "ragcore server base URL")

	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")

	libraryCreateCmd.Flags().String("index-type", "naive", "Index type: naive, lsh, or vptree")
	libraryCmd.AddCommand(libraryCreateCmd, libraryListCmd, libraryDeleteCmd)

	documentAddCmd.Flags().Int("chunk-size", 1000, "Chunk size in characters")
	documentAddCmd.Flags().String("doc-id", "", "Document id (generated if omitted)")
	documentCmd.AddCommand(documentAddCmd, documentDeleteCmd)

	searchCmd.Flags().IntP("top-k", "k", 10, "Number of results")
	searchCmd.Flags().Float64("min-similarity", 0, "Minimum cosine similarity")
	searchCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(serveCmd, libraryCmd, documentCmd, searchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
