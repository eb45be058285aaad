package serializer

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/cockroachdb/errors"
)

// Node 为解析后的 XML 元素，只保留本地名、属性、子元素与文本。
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []*Node
	Text     string
}

// ParseXML 解析完整的 XML 文档并返回根元素。
func ParseXML(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		stack []*Node
		root  *Node
		text  [][]byte
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse xml")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local}
			for _, a := range t.Attr {
				if n.Attrs == nil {
					n.Attrs = make(map[string]string, len(t.Attr))
				}
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else if root == nil {
				root = n
			} else {
				return nil, errors.New("parse xml: multiple root elements")
			}
			stack = append(stack, n)
			text = append(text, nil)
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1] = append(text[len(text)-1], t...)
			}
		case xml.EndElement:
			n := stack[len(stack)-1]
			if len(n.Children) == 0 {
				n.Text = string(text[len(text)-1])
			}
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}
	if root == nil {
		return nil, errors.New("parse xml: no root element")
	}
	if len(stack) > 0 {
		return nil, errors.New("parse xml: unexpected end of document")
	}
	return root, nil
}

// Child 返回第一个名为 name 的子元素。
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed 返回全部名为 name 的子元素，保持文档顺序。
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Find 沿路径逐层查找子元素。
func (n *Node) Find(path ...string) *Node {
	cur := n
	for _, name := range path {
		cur = cur.Child(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// ChildText 返回子元素文本，不存在时为空串。
func (n *Node) ChildText(name string) string {
	if c := n.Child(name); c != nil {
		return c.Text
	}
	return ""
}
