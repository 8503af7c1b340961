package graph

// Point 二维坐标
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CoupleEdge 夫妻连线：起止手柄点与中点锚位
//
// 纯派生视图，不持有状态，可以在每个拖动帧重复计算。
type CoupleEdge struct {
	From Point `json:"from"`
	To   Point `json:"to"`
	Mid  Point `json:"mid"`
}

// ComputeCoupleEdge 由两个节点的左上角位置计算连线
//
// 手柄点取源节点右侧中心和目标节点左侧中心；
// 图谱构建时保证男方在左、女方在右，这里不做方向判断。
func ComputeCoupleEdge(srcX, srcY, dstX, dstY float64) CoupleEdge {
	from := Point{X: srcX + NodeWidth, Y: srcY + NodeHeight/2}
	to := Point{X: dstX, Y: dstY + NodeHeight/2}
	return CoupleEdge{
		From: from,
		To:   to,
		Mid:  Point{X: (from.X + to.X) / 2, Y: (from.Y + to.Y) / 2},
	}
}

// CoupleEdgeBetween 按成员id计算夫妻连线；任一节点不存在时返回false（不渲染）
func (s *Store) CoupleEdgeBetween(srcID, dstID uint) (CoupleEdge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.members[srcID]
	if !ok {
		return CoupleEdge{}, false
	}
	dst, ok := s.members[dstID]
	if !ok {
		return CoupleEdge{}, false
	}
	return ComputeCoupleEdge(src.PosX, src.PosY, dst.PosX, dst.PosY), true
}
