//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/hack-pad/hackpadfs/indexeddb"

	"github.com/kittclouds/mammal/internal/archive"
	"github.com/kittclouds/mammal/internal/conversation"
	"github.com/kittclouds/mammal/internal/store"
	"github.com/kittclouds/mammal/pkg/mptree"
)

// Version info
const Version = "0.1.0"

// Global state
var (
	db       *store.SQLiteStore
	manager  *conversation.Manager
	archives *archive.Store
)

func main() {
	println("[Mammal] WASM Ready v" + Version)

	// Register exports
	js.Global().Set("Mammal", js.ValueOf(map[string]interface{}{
		"version":    js.FuncOf(getVersion),
		"initialize": js.FuncOf(initialize),
		"subscribe":  js.FuncOf(subscribe),
		// Messages
		"addMessage":      js.FuncOf(addMessage),
		"editMessage":     js.FuncOf(editMessage),
		"deleteMessage":   js.FuncOf(deleteMessage),
		"moveMessage":     js.FuncOf(moveMessage),
		"getThread":       js.FuncOf(getThread),
		"getTree":         js.FuncOf(getTree),
		"setActiveThread": js.FuncOf(setActiveThread),
		"setThreadFor":    js.FuncOf(setThreadFor),
		"goToSibling":     js.FuncOf(goToSibling),
		"siblingPosition": js.FuncOf(siblingPosition),
		// Conversations
		"listConversations": js.FuncOf(listConversations),
		"updateTitle":       js.FuncOf(updateTitle),
		"search":            js.FuncOf(search),
		"openSearchResult":  js.FuncOf(openSearchResult),
		// Archives (IndexedDB, async)
		"initArchives": js.FuncOf(initArchives),
		"exportThread": js.FuncOf(exportThread),
		"importThread": js.FuncOf(importThread),
		"listArchives": js.FuncOf(listArchives),
	}))

	select {}
}

type messageJSON struct {
	Path     string                   `json:"path"`
	ThreadID int64                    `json:"threadId"`
	Data     conversation.MessageData `json:"data"`
}

type branchJSON struct {
	messageJSON
	Children []branchJSON `json:"children,omitempty"`
}

type eventJSON struct {
	Kind   string                     `json:"kind"`
	Active *messageJSON               `json:"active"`
	Thread []messageJSON              `json:"thread"`
	Roots  []conversation.RootSummary `json:"roots"`
}

func toMessage(msg *conversation.Message) *messageJSON {
	if msg == nil {
		return nil
	}
	return &messageJSON{Path: msg.Path, ThreadID: msg.ThreadID, Data: msg.Data}
}

func toThread(thread []*conversation.Message) []messageJSON {
	out := make([]messageJSON, len(thread))
	for i, msg := range thread {
		out[i] = *toMessage(msg)
	}
	return out
}

func toBranch(b *mptree.Branch[conversation.MessageData]) branchJSON {
	out := branchJSON{messageJSON: *toMessage(b.Node)}
	for _, c := range b.Children {
		out.Children = append(out.Children, toBranch(c))
	}
	return out
}

// initialize opens an in-memory store.
// Args: [table string (optional, default "messages")]
func initialize(this js.Value, args []js.Value) interface{} {
	table := "messages"
	if len(args) > 0 && args[0].Type() == js.TypeString {
		table = args[0].String()
	}

	if db != nil {
		db.Close()
	}
	var err error
	db, err = store.NewSQLiteStore()
	if err != nil {
		return errorResult("open store: " + err.Error())
	}
	manager, err = conversation.NewManager(context.Background(), db, table)
	if err != nil {
		return errorResult("open conversations: " + err.Error())
	}
	return successResult("initialized")
}

// subscribe registers a JS callback for session changes. The callback gets
// one JSON string argument. Returns a function that unsubscribes.
// Args: [callback function]
func subscribe(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return errorResult("subscribe requires 1 arg: callback (function)")
	}
	if manager == nil {
		return errorResult("not initialized")
	}

	callback := args[0]
	cancel := manager.Session().Subscribe(func(ev conversation.Event) {
		payload := eventJSON{
			Kind:   ev.Kind.String(),
			Active: toMessage(ev.Active),
			Thread: toThread(ev.Thread),
			Roots:  ev.Roots,
		}
		bytes, _ := json.Marshal(payload)
		callback.Invoke(string(bytes))
	})

	var unsubscribe js.Func
	unsubscribe = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		cancel()
		unsubscribe.Release()
		return nil
	})
	return unsubscribe
}

// addMessage: [parentPath string, role string, text string]
func addMessage(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("requires 3 args: parentPath, role, text")
	}
	if manager == nil {
		return errorResult("not initialized")
	}

	data := conversation.NewMessage(conversation.Role(args[1].String()), args[2].String())
	msg, err := manager.AddMessage(context.Background(), args[0].String(), data)
	if err != nil {
		return errorResult("add failed: " + err.Error())
	}
	return jsonResult(toMessage(msg))
}

// editMessage: [path string, text string]
func editMessage(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("requires 2 args: path, text")
	}
	if manager == nil {
		return errorResult("not initialized")
	}

	msg, err := manager.EditMessage(context.Background(), args[0].String(), args[1].String())
	if err != nil {
		return errorResult("edit failed: " + err.Error())
	}
	return jsonResult(toMessage(msg))
}

// deleteMessage: [path string]
func deleteMessage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: path")
	}
	if manager == nil {
		return errorResult("not initialized")
	}

	if err := manager.CascadeDelete(context.Background(), args[0].String()); err != nil {
		return errorResult("delete failed: " + err.Error())
	}
	return successResult("deleted")
}

// moveMessage: [path string, newParentPath string]
func moveMessage(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("requires 2 args: path, newParentPath")
	}
	if manager == nil {
		return errorResult("not initialized")
	}

	msg, err := manager.MoveMessage(context.Background(), args[0].String(), args[1].String())
	if err != nil {
		return errorResult("move failed: " + err.Error())
	}
	return jsonResult(toMessage(msg))
}

// getThread: [path string]
// Returns: JSON array of messages from the thread start to path
func getThread(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: path")
	}
	if manager == nil {
		return errorResult("not initialized")
	}

	thread, err := manager.GetThreadEndingAt(context.Background(), args[0].String())
	if err != nil {
		return errorResult("thread failed: " + err.Error())
	}
	return jsonResult(toThread(thread))
}

// getTree: [path string (optional)]
// Returns: JSON array of nested branches
func getTree(this js.Value, args []js.Value) interface{} {
	if manager == nil {
		return errorResult("not initialized")
	}
	var path string
	if len(args) > 0 {
		path = args[0].String()
	}

	view, err := manager.Tree().GetTree(context.Background(), path)
	if err != nil {
		return errorResult("tree failed: " + err.Error())
	}
	branches := []branchJSON{}
	if view != nil {
		for _, b := range view.Branches() {
			branches = append(branches, toBranch(b))
		}
	}
	return jsonResult(branches)
}

// setActiveThread: [path string]
func setActiveThread(this js.Value, args []js.Value) interface{} {
	return activateWith(args, manager.SetActiveThread)
}

// setThreadFor: [path string]
func setThreadFor(this js.Value, args []js.Value) interface{} {
	return activateWith(args, manager.SetThreadFor)
}

// openSearchResult: [path string]
func openSearchResult(this js.Value, args []js.Value) interface{} {
	return activateWith(args, manager.OpenSearchResult)
}

func activateWith(args []js.Value, fn func(context.Context, string) (*conversation.Message, error)) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: path")
	}
	if manager == nil {
		return errorResult("not initialized")
	}

	if _, err := fn(context.Background(), args[0].String()); err != nil {
		return errorResult("activate failed: " + err.Error())
	}
	return jsonResult(toThread(manager.ActiveThread()))
}

// goToSibling: [path string, offset int]
func goToSibling(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("requires 2 args: path, offset")
	}
	if manager == nil {
		return errorResult("not initialized")
	}

	if _, err := manager.GoToSibling(context.Background(), args[0].String(), args[1].Int()); err != nil {
		return errorResult("sibling failed: " + err.Error())
	}
	return jsonResult(toThread(manager.ActiveThread()))
}

// siblingPosition: [path string]
// Returns: {"index": n, "count": n}
func siblingPosition(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: path")
	}
	if manager == nil {
		return errorResult("not initialized")
	}

	index, count, err := manager.SiblingPosition(context.Background(), args[0].String())
	if err != nil {
		return errorResult("position failed: " + err.Error())
	}
	return jsonResult(map[string]int{"index": index, "count": count})
}

// listConversations: []
func listConversations(this js.Value, args []js.Value) interface{} {
	if manager == nil {
		return errorResult("not initialized")
	}

	roots, err := manager.RefreshRoots(context.Background())
	if err != nil {
		return errorResult("list failed: " + err.Error())
	}
	return jsonResult(roots)
}

// updateTitle: [threadId int, title string]
func updateTitle(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("requires 2 args: threadId, title")
	}
	if manager == nil {
		return errorResult("not initialized")
	}

	if err := manager.UpdateThreadTitle(context.Background(), int64(args[0].Int()), args[1].String()); err != nil {
		return errorResult("title failed: " + err.Error())
	}
	return successResult("updated")
}

// search: [query string, limit int (optional)]
func search(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1+ args: query, [limit]")
	}
	if manager == nil {
		return errorResult("not initialized")
	}
	limit := 0
	if len(args) > 1 && args[1].Type() == js.TypeNumber {
		limit = args[1].Int()
	}

	results, err := manager.Search(context.Background(), args[0].String(), limit)
	if err != nil {
		return errorResult("search failed: " + err.Error())
	}
	return jsonResult(results)
}

// initArchives opens the IndexedDB-backed archive filesystem.
// Args: [] (uses the "mammal" database). Returns a Promise.
func initArchives(this js.Value, args []js.Value) interface{} {
	return promise(func() (interface{}, error) {
		if manager == nil {
			return nil, errNotInitialized
		}
		fs, err := indexeddb.NewFS(context.Background(), "mammal", indexeddb.Options{})
		if err != nil {
			return nil, err
		}
		archives = archive.NewStore(fs, "archives", manager)
		return successResult("archives initialized"), nil
	})
}

// exportThread: [threadId int]. Returns a Promise of the file name.
func exportThread(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: threadId")
	}
	threadID := int64(args[0].Int())
	return promise(func() (interface{}, error) {
		if archives == nil {
			return nil, errNoArchives
		}
		name, err := archives.Export(context.Background(), threadID)
		if err != nil {
			return nil, err
		}
		return successResult(name), nil
	})
}

// importThread: [name string]. Returns a Promise of the new thread id.
func importThread(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: name")
	}
	name := args[0].String()
	return promise(func() (interface{}, error) {
		if archives == nil {
			return nil, errNoArchives
		}
		threadID, err := archives.Import(context.Background(), name)
		if err != nil {
			return nil, err
		}
		return jsonResult(map[string]int64{"threadId": threadID}), nil
	})
}

// listArchives: []. Returns a Promise of a JSON array of file names.
func listArchives(this js.Value, args []js.Value) interface{} {
	return promise(func() (interface{}, error) {
		if archives == nil {
			return nil, errNoArchives
		}
		names, err := archives.List()
		if err != nil {
			return nil, err
		}
		return jsonResult(names), nil
	})
}

func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}
