package predictor

// trieNode fields are exported so the trie can be gob encoded.
type trieNode struct {
	Children map[rune]*trieNode
	Terminal bool
}

type trie struct {
	Root *trieNode
	Size int
}

func newTrie() *trie {
	return &trie{Root: &trieNode{Children: make(map[rune]*trieNode)}}
}

// insert reports whether phrase was new.
func (t *trie) insert(phrase string) bool {
	node := t.Root
	for _, r := range phrase {
		if node.Children == nil {
			node.Children = make(map[rune]*trieNode)
		}
		child, ok := node.Children[r]
		if !ok {
			child = &trieNode{Children: make(map[rune]*trieNode)}
			node.Children[r] = child
		}
		node = child
	}
	if node.Terminal {
		return false
	}
	node.Terminal = true
	t.Size++
	return true
}

func (t *trie) contains(phrase string) bool {
	node := t.find(phrase)
	return node != nil && node.Terminal
}

// withPrefix returns every stored phrase starting with prefix.
func (t *trie) withPrefix(prefix string) []string {
	node := t.find(prefix)
	if node == nil {
		return nil
	}
	var out []string
	collect(node, []rune(prefix), &out)
	return out
}

func (t *trie) find(prefix string) *trieNode {
	node := t.Root
	for _, r := range prefix {
		node = node.Children[r]
		if node == nil {
			return nil
		}
	}
	return node
}

func collect(node *trieNode, path []rune, out *[]string) {
	if node.Terminal {
		*out = append(*out, string(path))
	}
	for r, child := range node.Children {
		collect(child, append(path, r), out)
	}
}
