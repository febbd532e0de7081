// Package remote implements the network-service storage adapter: a thin
// HTTP server fronting any storage.Adapter, a client Adapter that talks to
// it, and a websocket push channel so a client can learn about a remote
// update without polling.
package remote

import "github.com/foliavcs/folia/vcs"

// graphWire is the JSON wire form of a *vcs.Graph: the type's fields are
// unexported, so server and client exchange this flattened view instead.
type graphWire struct {
	Branches []vcs.Branch `json:"branches"`
	Commits  []vcs.Commit `json:"commits"`
}

func toWire(graph *vcs.Graph) graphWire {
	w := graphWire{Branches: graph.Branches()}
	commits := graph.Commits()
	w.Commits = make([]vcs.Commit, 0, len(commits))
	for _, c := range commits {
		w.Commits = append(w.Commits, c)
	}
	return w
}

func fromWire(w graphWire) *vcs.Graph {
	graph := vcs.NewGraph()
	for _, c := range w.Commits {
		graph.PutCommit(c)
	}
	for _, b := range w.Branches {
		graph.AddBranch(b.Name)
		if b.HeadCommitID != "" {
			_ = graph.SetBranchHead(b.Name, b.HeadCommitID)
		}
	}
	return graph
}

// updateMessage is the notification pushed to websocket subscribers each
// time the server's backing adapter accepts a new InternalRepoUpdate. It
// carries only the affected branch names, never the payload — a recipient
// always re-fetches via GetCommitGraph/GetCommits rather than trusting a
// push as the source of truth.
type updateMessage struct {
	Branches []string `json:"branches"`
}
