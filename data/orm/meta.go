package orm

// FieldMeta 描述字段元信息。
type FieldMeta struct {
	Name          string
	Column        string
	PrimaryKey    bool
	AutoIncrement bool
}

// ModelMeta 描述模型级别元信息。
// Fields 为空时由适配器通过结构体标签推断。
type ModelMeta struct {
	Model  any
	Table  string
	Fields []FieldMeta
}

// PrimaryKey 返回声明的主键列，未声明时为 "id"。
func (m *ModelMeta) PrimaryKey() string {
	if m != nil {
		for _, f := range m.Fields {
			if f.PrimaryKey {
				return f.Column
			}
		}
	}
	return "id"
}
